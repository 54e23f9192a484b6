package hass

// Publisher sends a message to a topic.
// *mqtt.Client satisfies it and is safe for concurrent use.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// StateManager publishes one entity's state.
//
// It is a small value: copies share the publisher and may be used from any
// number of goroutines. The broker creates it when a stateful entity is
// registered; the entity keeps it for as long as it needs it.
type StateManager struct {
	publisher Publisher
	topic     string
	entity    string
	qos       byte
	logger    Logger
}

func newStateManager(publisher Publisher, topic, entity string, qos byte, logger Logger) StateManager {
	if logger == nil {
		logger = noopLogger{}
	}
	return StateManager{
		publisher: publisher,
		topic:     topic,
		entity:    entity,
		qos:       qos,
		logger:    logger,
	}
}

// UpdateState publishes state to the entity's state topic (not retained).
//
// Failures are logged and dropped: a newer update supersedes a lost one.
func (s StateManager) UpdateState(state string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(s.topic, []byte(state), s.qos, false); err != nil {
		s.logger.Error("state publish failed",
			"entity", s.entity,
			"topic", s.topic,
			"state", state,
			"error", err,
		)
		return
	}
	s.logger.Debug("state published", "entity", s.entity, "state", state)
}

// Topic returns the state topic.
func (s StateManager) Topic() string { return s.topic }

// EntityName returns the name of the entity the manager publishes for.
func (s StateManager) EntityName() string { return s.entity }
