// Package main provides the entry point for pebbl-cp.
//
// pebbl-cp inspects the checkpoint files and load logs a run leaves behind:
//
//	pebbl-cp scan --dir /data/run --problem knap
//	pebbl-cp inspect /data/run/knap.cp12.p3.bdat
//	pebbl-cp watch --dir /data/run --metrics-addr :9100
//	pebbl-cp loadlog load.log -o json
package main
