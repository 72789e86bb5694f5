package domain

// Subproblem is a pending node of the branch-and-bound tree.
//
// The checkpoint code never looks inside a subproblem; it only serializes,
// restores, fathoms and recycles it.
type Subproblem interface {
	// MarshalBinary serializes the subproblem for a checkpoint file or a
	// forwarded record.
	MarshalBinary() ([]byte, error)

	// Bound returns the subproblem's bound on the objective.
	Bound() float64

	// CanFathom reports whether the subproblem can be discarded given the
	// current incumbent value.
	CanFathom(incumbent float64) bool

	// Recycle returns the subproblem's resources to the application.
	Recycle()
}

// SubproblemDecoder restores subproblems written by Subproblem.MarshalBinary.
// data is only valid during the call.
type SubproblemDecoder interface {
	DecodeSubproblem(data []byte) (Subproblem, error)
}

// SubproblemDecoderFunc adapts a function to SubproblemDecoder.
type SubproblemDecoderFunc func(data []byte) (Subproblem, error)

// DecodeSubproblem calls f(data).
func (f SubproblemDecoderFunc) DecodeSubproblem(data []byte) (Subproblem, error) {
	return f(data)
}

// PoolAccess is the view of a subproblem pool used by the search engine and
// the restart code.
type PoolAccess interface {
	Size() int
	// Scan calls fn for each pending subproblem until fn returns false.
	Scan(fn func(Subproblem) bool)
	Insert(sp Subproblem)
}

// Solution is one entry of the solution repository used when enumerating
// multiple incumbents.
type Solution interface {
	MarshalBinary() ([]byte, error)
	Value() float64
	Serial() int64
	SetSerial(serial int64)

	// Owner returns the process that should hold this solution after a
	// reconfigure restart onto numProcs processes.
	Owner(numProcs int) int
}

// SolutionDecoder restores solutions written by Solution.MarshalBinary.
// data is only valid during the call.
type SolutionDecoder interface {
	DecodeSolution(data []byte) (Solution, error)
}

// SolutionDecoderFunc adapts a function to SolutionDecoder.
type SolutionDecoderFunc func(data []byte) (Solution, error)

// DecodeSolution calls f(data).
func (f SolutionDecoderFunc) DecodeSolution(data []byte) (Solution, error) {
	return f(data)
}

// Application owns the problem-global state written with every checkpoint.
type Application interface {
	// MarshalGlobal returns the blob written into this process's checkpoint.
	MarshalGlobal() ([]byte, error)

	// UnmarshalGlobal restores the blob read back by a parallel restart.
	UnmarshalGlobal(data []byte) error

	// MergeGlobal folds one original file's blob into the local state during
	// a reconfigure restart. It is called on every process for every file.
	MergeGlobal(data []byte) error
}

// Incumbent is the best solution value known to the run.
type Incumbent struct {
	Value float64
	// Owner is the rank holding the incumbent payload, or -1 if none.
	Owner int
	// Payload is the application's serialized incumbent. Only the owner
	// has it.
	Payload []byte
}

// NoIncumbent returns the incumbent of a run that has not found a solution.
func NoIncumbent(sense Sense) Incumbent {
	return Incumbent{Value: sense.Worst(), Owner: -1}
}
