// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package watch uploads files dropped into a directory.
//
// Create and write events are debounced so a file is sent once it stops
// changing. Files are uploaded one at a time through the session controller;
// while another upload is in flight, queued files wait. A file is not sent
// again unless its modification time changes.
//
// # Usage
//
//	w, err := watch.New(ctrl, watch.Options{
//	    Dir:        cfg.Watch.Dir,
//	    Debounce:   cfg.Watch.Debounce(),
//	    Extensions: cfg.Watch.Extensions,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := w.Watch(); err != nil {
//	    return err
//	}
//	defer w.Close()
package watch
