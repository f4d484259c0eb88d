// Command reelpipe runs the video pipeline daemon and offers local job
// inspection and control.
//
// Commands:
//
//	serve               run the scheduler and HTTP API until interrupted
//	scan                run one scan in the foreground
//	jobs list|show|retry
//	status              dependencies, preflight checks, and job counts
//	config init|show
//
// scan and jobs retry refuse to run while a daemon holds the instance lock;
// use the HTTP API (POST /trigger, POST /jobs/:id/retry) instead.
package main
