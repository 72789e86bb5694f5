// Package checkpoint stores per-process checkpoint files.
//
// One file is written per process and checkpoint number:
//
//	<problem>.cp<number>.p<rank>.bdat
//	[incumbent value:8][incumbent owner:4][problem counter:8]
//	[payload:bytes]            (only when owner == rank)
//	[application blob:bytes]
//	[subproblem count:4][subproblem:bytes]*
//	[repository size:4][solution:bytes]*
//
// bytes is a big-endian int32 length followed by the data. Files are
// written under a hidden temporary name and renamed into place after
// fsync, so a scan never sees a partial file.
package checkpoint
