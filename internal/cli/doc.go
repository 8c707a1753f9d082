// Package cli implements the pxd command-line interface.
//
// Every command loads the config, builds the component graph in openApp and
// delegates to the aggregate, scripts or suggest packages. Output is either
// rendered with the ui package or, with --json, written as the same
// envelope the HTTP API returns.
//
//	pxd overview system           - Every container and VM with status
//	pxd overview maintenance      - Catalog service/binary/config checks
//	pxd host                      - Host health summary
//	pxd perf [--watch 5s]         - CPU, memory, network and storage
//	pxd status <target>           - One container or VM
//	pxd control <target> <action> - start, stop, restart, shutdown, reset
//	pxd service <target> <name>   - systemd unit status or control
//	pxd binary <target> <name>    - Locate a binary and its version
//	pxd config check|read|write   - Inspect and edit config files
//	pxd script [id]               - Run a local maintenance script
//	pxd suggest <topic>           - Ask the suggestion endpoint
//	pxd serve                     - HTTP API and websocket push
//	pxd doctor                    - Config, SSH and host tool diagnostics
//
// Targets are written "host", "ct:214" or "vm:611".
package cli
