package notify_test

import (
  "encoding/json"
  "errors"
  "reflect"
  "testing"
  "time"

  mqtt "github.com/eclipse/paho.mqtt.golang"
  "github.com/robertof/go-rapt-exporter/brewing"
  "github.com/robertof/go-rapt-exporter/notify"
  "github.com/robertof/go-rapt-exporter/utils"
)

type fakeToken struct {
  err error
}

func (t fakeToken) Wait() bool { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Error() error { return t.err }

func (t fakeToken) Done() <-chan struct{} {
  ch := make(chan struct{})
  close(ch)
  return ch
}

type published struct {
  topic string
  qos byte
  retained bool
  payload []byte
}

type fakePublisher struct {
  messages []published
  err error
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
  p.messages = append(p.messages, published{topic, qos, retained, payload.([]byte)})
  return fakeToken{p.err}
}

type recordingNotifier struct {
  alerts []brewing.Alert
  err error
}

func (r *recordingNotifier) Notify(_ *brewing.Session, a brewing.Alert) error {
  r.alerts = append(r.alerts, a)
  return r.err
}

var (
  epoch = time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)

  session = &brewing.Session{
    ID: "f00d",
    Name: "Hefeweizen",
    CurrentGravity: utils.Ptr(1.012),
    CurrentTemperature: utils.Ptr(31.5),
  }

  alert = brewing.Alert{
    Type: brewing.AlertTemperatureHigh,
    Message: "Temperature too high",
    Timestamp: epoch,
  }
)

func TestMQTTNotifier(t *testing.T) {
  pub := &fakePublisher{}
  n := notify.NewMQTTNotifier(pub, "", false)

  if err := n.Notify(session, alert); err != nil {
    t.Fatalf("Notify got error: %v", err)
  }

  if len(pub.messages) != 1 {
    t.Fatalf("published %d messages, wanted 1", len(pub.messages))
  }

  msg := pub.messages[0]

  if msg.topic != "rapt/f00d/alerts/temperature_high" {
    t.Fatalf("topic: got %q", msg.topic)
  }

  var body map[string]any

  if err := json.Unmarshal(msg.payload, &body); err != nil {
    t.Fatalf("payload is not JSON: %v", err)
  }

  want := map[string]any{
    "session_id": "f00d",
    "session_name": "Hefeweizen",
    "type": "temperature_high",
    "message": "Temperature too high",
    "timestamp": "2024-03-01T08:00:00Z",
    "gravity": 1.012,
    "temperature": 31.5,
  }

  if !reflect.DeepEqual(body, want) {
    t.Fatalf("payload: got %v, wanted %v", body, want)
  }
}

func TestMQTTNotifier_PublishError(t *testing.T) {
  pub := &fakePublisher{err: errors.New("not connected")}
  n := notify.NewMQTTNotifier(pub, "brewery", true)

  if err := n.Notify(session, alert); err == nil {
    t.Fatalf("Notify succeeded despite the publish error")
  }

  if got := pub.messages[0]; got.topic != "brewery/f00d/alerts/temperature_high" || !got.retained {
    t.Fatalf("published %+v, wanted a retained message under brewery/", got)
  }
}

func TestMulti(t *testing.T) {
  boom := errors.New("boom")
  first, second := &recordingNotifier{err: boom}, &recordingNotifier{}

  err := notify.Multi{first, notify.LogNotifier{}, second}.Notify(session, alert)

  if !errors.Is(err, boom) {
    t.Fatalf("Multi.Notify: got %v, wanted %v", err, boom)
  }

  if len(first.alerts) != 1 || len(second.alerts) != 1 {
    t.Fatalf("every notifier should have been called: got %v and %v", first.alerts, second.alerts)
  }

  if err := (notify.Multi{}).Notify(session, alert); err != nil {
    t.Fatalf("empty Multi.Notify got error: %v", err)
  }
}
