package sim

import (
	"log"

	"emberhold/server/logging"
)

// Deps carries shared infrastructure dependencies required by the
// simulation components.
type Deps struct {
	Logger    *log.Logger
	Metrics   *logging.Metrics
	Clock     logging.Clock
	Publisher logging.Publisher
}

func (d Deps) clock() logging.Clock {
	if d.Clock == nil {
		return logging.SystemClock{}
	}
	return d.Clock
}

func (d Deps) publisher() logging.Publisher {
	if d.Publisher == nil {
		return logging.NopPublisher()
	}
	return d.Publisher
}

func (d Deps) logger() *log.Logger {
	if d.Logger == nil {
		return log.Default()
	}
	return d.Logger
}
