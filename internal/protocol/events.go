package protocol

// Bus event names consumed by the simulation core (collaborator -> core).
const (
	EvSimulationStart       = "SIMULATION_START"
	EvSimulationStop        = "SIMULATION_STOP"
	EvSimulationPause       = "SIMULATION_PAUSE"
	EvSimulationResume      = "SIMULATION_RESUME"
	EvSimulationReset       = "SIMULATION_RESET"
	EvSimulationSpeedChange = "SIMULATION_SPEED_CHANGE"
	EvPlanetGenerated       = "PLANET_GENERATED"
	EvElementAdded          = "ELEMENT_ADDED"
	EvPlayerMove            = "PLAYER_MOVE"
	EvStateLoaded           = "STATE_LOADED"
)

// Bus event names produced by the simulation core (core -> collaborator).
const (
	EvSimulationStarted        = "SIMULATION_STARTED"
	EvSimulationStopped        = "SIMULATION_STOPPED"
	EvSimulationPaused         = "SIMULATION_PAUSED"
	EvSimulationResumed        = "SIMULATION_RESUMED"
	EvSimulationResetComplete  = "SIMULATION_RESET_COMPLETE"
	EvSimulationSpeedChanged   = "SIMULATION_SPEED_CHANGED"
	EvPlanetGenerationComplete = "PLANET_GENERATION_COMPLETE"
	EvElementAddedComplete     = "ELEMENT_ADDED_COMPLETE"
	EvElementRemoved           = "ELEMENT_REMOVED"
	EvSimulationUpdated        = "SIMULATION_UPDATED"
	EvSystemError              = "SYSTEM_ERROR"
)

// ConsumedEvents is the set of event names a remote collaborator may inject
// through the websocket transport.
var ConsumedEvents = map[string]bool{
	EvSimulationStart:       true,
	EvSimulationStop:        true,
	EvSimulationPause:       true,
	EvSimulationResume:      true,
	EvSimulationReset:       true,
	EvSimulationSpeedChange: true,
	EvPlanetGenerated:       true,
	EvElementAdded:          true,
	EvPlayerMove:            true,
	EvStateLoaded:           true,
}

// ProducedEvents is the set of event names pushed to websocket collaborators.
var ProducedEvents = []string{
	EvSimulationStarted,
	EvSimulationStopped,
	EvSimulationPaused,
	EvSimulationResumed,
	EvSimulationResetComplete,
	EvSimulationSpeedChanged,
	EvPlanetGenerationComplete,
	EvElementAddedComplete,
	EvElementRemoved,
	EvSimulationUpdated,
	EvSystemError,
}
