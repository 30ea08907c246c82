// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

/*
Package supervisor runs Encore's long-lived services under a suture v4 tree.

	RootSupervisor ("encore")
	├── DataSupervisor ("data-layer")
	│   └── WatcherService (playback polling)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── HubService (websocket fan-out)
	│   └── BroadcastService (event queue and sinks)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A watcher crash restarts only the watcher; display clients stay connected
to the hub and keep the last state they received. Supervisor events are
logged through sutureslog on top of the zerolog adapter:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return err
	}
	tree.Wire(supervisor.Services{
		Watcher:     watcher,
		Hub:         hub,
		Broadcaster: broadcaster,
		HTTP:        server,
	})
	err = tree.Serve(ctx)

Restart policy is suture's: FailureThreshold failures, decaying at
FailureDecay per second, trigger FailureBackoff before the next restart.
*/
package supervisor
