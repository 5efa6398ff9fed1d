// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// miniapp-server serves the mini-app HTTP and WebSocket API.
//
// With server.workers at most 1 (or a single CPU) it runs as one
// process whose event bus delivers locally. Otherwise it becomes a
// coordinator: it re-executes itself once per worker, handing each
// child one end of a Unix socketpair as fd 3, and relays every event a
// worker publishes to all workers. Workers share the listening port
// through SO_REUSEPORT.
//
// Process tree for workers: 3:
//
//	miniapp-server (coordinator, no listener)
//	├── miniapp-server --worker-index=0
//	├── miniapp-server --worker-index=1
//	└── miniapp-server --worker-index=2
//
// SIGINT or SIGTERM to the coordinator is forwarded to every worker;
// the coordinator exits once they have. A worker whose coordinator
// disappears exits on its own. Workers are not restarted.
package main
