package obsfabric

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"toolhub.dev/hub"
)

// MongoSink persists every event it receives into a Mongo collection for
// external consumption. It registers like any other Log subscriber (On) and
// never affects append ordering or the in-memory GetAll used by tests — a
// Mongo write failure is swallowed here rather than surfaced, since a sink
// must never corrupt the log for other listeners (§4.10).
type MongoSink struct {
	collection *mongo.Collection
	onError    func(error)
}

// NewMongoSink wraps collection as an event sink. onError, if non-nil, is
// called (outside the Log's append path) on persistence failures; it may be
// nil to silently drop errors.
func NewMongoSink(collection *mongo.Collection, onError func(error)) *MongoSink {
	return &MongoSink{collection: collection, onError: onError}
}

// Listener returns the obsfabric.Listener to register on a Log via On.
func (s *MongoSink) Listener() Listener {
	return func(evt toolhub.Event) {
		_, err := s.collection.InsertOne(context.Background(), evt)
		if err != nil && s.onError != nil {
			s.onError(err)
		}
	}
}
