package ir

// Version constants for the serialized context format and the engine.
const (
	// FormatVersion is the context document schema version. Load rejects
	// documents written with a different version.
	FormatVersion = 1

	// EngineVersion is the mpcgraph engine version.
	EngineVersion = "0.1.0"
)
