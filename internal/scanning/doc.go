// Package scanning is the netsweep scanning engine.
//
// It turns a CIDR block into host records in two stages. A liveness sweep
// enumerates every usable address and probes each one with bounded
// concurrency. A detail probe runs nmap against a single live host to
// collect open ports, services and an operating system guess.
//
// # Main Components
//
//   - EnumerateHosts: expand an IPv4 CIDR into its usable host addresses
//   - LivenessProber: answer "is this address up", never an error
//   - Sweeper: run a LivenessProber over many addresses, at most N at a time
//   - DetailProber: run nmap with a privileged tier and an unprivileged fallback
//   - ParseReport / RecordFromRun: turn nmap XML into a db.HostRecord
//
// # Usage
//
//	addrs, err := scanning.EnumerateHosts("192.168.1.0/24")
//	if err != nil {
//		return err
//	}
//	sweeper := scanning.NewSweeper(scanning.NewPingProber(time.Second), 50)
//	records := sweeper.Sweep(ctx, addrs)
//
// Per-address failures never surface as errors. A probe that times out, is
// refused or cannot spawn its process reports the address as inactive.
package scanning
