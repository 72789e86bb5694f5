package service

// Point-to-point tags of the checkpoint and restart protocols.
const (
	tagCheckpointSignal = 100 + iota
	tagSubproblem
	tagSolution
	tagResize
	tagFileDone
)
