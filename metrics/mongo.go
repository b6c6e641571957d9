package metrics

import "context"
import "time"

import "github.com/pkg/errors"
import log "github.com/sirupsen/logrus"
import "go.mongodb.org/mongo-driver/mongo"
import "go.mongodb.org/mongo-driver/mongo/options"
import "go.mongodb.org/mongo-driver/mongo/readpref"

// Collection is the part of a mongo collection the sink writes to
type Collection interface {
	InsertMany(context.Context, []interface{}) ([]interface{}, error)
}

type mongoCollection struct{ coll *mongo.Collection }

func (mc *mongoCollection) InsertMany(ctx context.Context, documents []interface{}) ([]interface{}, error) {
	result, err := mc.coll.InsertMany(ctx, documents)
	if err != nil {
		return nil, err
	}
	return result.InsertedIDs, nil
}

// Document is the stored form of a point
type Document struct {
	Run   string    `bson:"run"`
	Tag   string    `bson:"tag"`
	Step  int       `bson:"step"`
	Value float64   `bson:"value"`
	Time  time.Time `bson:"time"`
}

// MongoSink batches points on a background goroutine. Points arriving while the
// queue is full are dropped and counted.
type MongoSink struct {
	run     string
	coll    Collection
	queue   chan Document
	done    chan struct{}
	batch   int
	timeout time.Duration
	client  *mongo.Client

	Dropped int
}

// NewMongoSink writes documents of run to coll, inserting batch documents at a time
func NewMongoSink(coll Collection, run string, batch int) *MongoSink {
	if batch <= 0 {
		batch = 1
	}
	s := &MongoSink{
		run:     run,
		coll:    coll,
		queue:   make(chan Document, 16*batch),
		done:    make(chan struct{}),
		batch:   batch,
		timeout: 10 * time.Second,
	}
	go s.loop()
	return s
}

// DialMongo connects to uri and returns a sink over database.collection
func DialMongo(ctx context.Context, uri, database, collection, run string) (*MongoSink, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connect metrics collector")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, errors.Wrap(err, "ping metrics collector")
	}
	s := NewMongoSink(&mongoCollection{client.Database(database).Collection(collection)}, run, 32)
	s.client = client
	return s, nil
}

func (s *MongoSink) Scalar(tag string, step int, value float64) {
	select {
	case s.queue <- Document{Run: s.run, Tag: tag, Step: step, Value: value, Time: time.Now()}:
	default:
		s.Dropped++
	}
}

func (s *MongoSink) loop() {
	defer close(s.done)
	pending := make([]interface{}, 0, s.batch)
	for doc := range s.queue {
		pending = append(pending, doc)
		if len(pending) >= s.batch || len(s.queue) == 0 {
			s.flush(pending)
			pending = pending[:0]
		}
	}
	if len(pending) > 0 {
		s.flush(pending)
	}
}

func (s *MongoSink) flush(docs []interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		log.WithFields(log.Fields{"run": s.run, "points": len(docs)}).WithError(err).Warn("metrics insert failed")
	}
}

// Close waits for queued points to be written and disconnects a dialed client
func (s *MongoSink) Close() error {
	close(s.queue)
	<-s.done
	if s.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		return s.client.Disconnect(ctx)
	}
	return nil
}
