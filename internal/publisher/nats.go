package publisher

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"bus-simulator/internal/transit"
)

type NATSPublisher struct {
	nc          *nats.Conn
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

// NewNATSPublisher connects to url. When streamName is set, a JetStream stream
// capturing "<prefix>.>" is created if it does not exist yet.
func NewNATSPublisher(url, prefix string, logSubjects bool, m PublisherMetrics, streamName string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("bus-simulator"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	prefix = subjectToken(prefix)
	if streamName != "" {
		if err := ensureStream(nc, streamName, prefix); err != nil {
			nc.Close()
			return nil, err
		}
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logSubjects: logSubjects, metrics: m}, nil
}

func ensureStream(nc *nats.Conn, name, prefix string) error {
	js, err := nc.JetStream()
	if err != nil {
		return fmt.Errorf("jetstream: %w", err)
	}
	if _, err := js.StreamInfo(name); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %s: %w", name, err)
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     name,
		Subjects: []string{prefix + ".>"},
		MaxAge:   time.Hour,
	})
	if err != nil {
		return fmt.Errorf("add stream %s: %w", name, err)
	}
	log.Printf("created jetstream stream %s for %s.>", name, prefix)
	return nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

type PositionMessage struct {
	SessionID   string      `json:"sessionId"`
	RouteID     string      `json:"routeId"`
	Timestamp   time.Time   `json:"timestamp"`
	Lat         float64     `json:"lat"`
	Lon         float64     `json:"lon"`
	Bearing     float64     `json:"bearing"`
	Direction   int         `json:"direction"`
	NearestStop string      `json:"nearestStop"`
	ETA         transit.ETA `json:"eta"`
	Passenger   bool        `json:"passenger"`
}

type JourneyMessage struct {
	SessionID string                    `json:"sessionId"`
	Running   bool                      `json:"running"`
	Tick      uint64                    `json:"tick"`
	Timestamp time.Time                 `json:"timestamp"`
	Passenger transit.PassengerSnapshot `json:"passenger"`
}

func positionMessages(snap transit.Snapshot) []PositionMessage {
	msgs := make([]PositionMessage, 0, len(snap.Routes))
	for _, r := range snap.Routes {
		msgs = append(msgs, PositionMessage{
			SessionID:   snap.SessionID,
			RouteID:     r.RouteID,
			Timestamp:   snap.Timestamp,
			Lat:         r.Position.Lat,
			Lon:         r.Position.Lon,
			Bearing:     r.Bearing,
			Direction:   r.Direction,
			NearestStop: r.NearestStop,
			ETA:         r.ETA,
			Passenger:   r.PassengerOnBoard,
		})
	}
	return msgs
}

func (p *NATSPublisher) routeSubject(routeID string) string {
	return fmt.Sprintf("%s.routes.%s", p.prefix, subjectToken(routeID))
}

func (p *NATSPublisher) journeySubject() string {
	return p.prefix + ".journey"
}

// PublishSnapshot sends one position message per route plus the journey state.
func (p *NATSPublisher) PublishSnapshot(snap transit.Snapshot) error {
	var errs []error
	for _, msg := range positionMessages(snap) {
		if err := p.publishJSON(p.routeSubject(msg.RouteID), msg); err != nil {
			errs = append(errs, err)
		}
	}
	jm := JourneyMessage{
		SessionID: snap.SessionID,
		Running:   snap.Running,
		Tick:      snap.Tick,
		Timestamp: snap.Timestamp,
		Passenger: snap.Passenger,
	}
	if err := p.publishJSON(p.journeySubject(), jm); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (p *NATSPublisher) publishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.Printf("nats publish subject=%s", subject)
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
