// Package telemetry exports the live status as Prometheus gauges and,
// optionally, as JSON messages on an MQTT topic.
package telemetry

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/labjacker/labjacker/controller/status"
)

// MQTTConfig configures the optional MQTT publisher. An empty Broker
// disables it.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Telemetry holds the gauges and the MQTT client.
type Telemetry struct {
	temperature prometheus.Gauge
	ain0        prometheus.Gauge
	ain1        prometheus.Gauge
	voltageDiff prometheus.Gauge
	pressure    prometheus.Gauge
	valves      *prometheus.GaugeVec
	running     prometheus.Gauge

	mqttClient mqtt.Client
	topic      string
}

// New registers the gauges with the given registerer and, when cfg.Broker is
// set, connects the MQTT publisher. An MQTT connection failure is logged and
// disables publishing; it never fails construction.
func New(reg prometheus.Registerer, cfg MQTTConfig) *Telemetry {
	gauge := func(name, help string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "labjacker",
			Name:      name,
			Help:      help,
		})
		reg.MustRegister(g)
		return g
	}

	t := &Telemetry{
		temperature: gauge("temperature_celsius", "Device internal temperature."),
		ain0:        gauge("ain0_volts", "Analog input 0."),
		ain1:        gauge("ain1_volts", "Analog input 1."),
		voltageDiff: gauge("voltage_diff_volts", "AIN1 - AIN0."),
		pressure:    gauge("pressure_psig", "Calibrated pressure."),
		running:     gauge("sequence_running", "1 while a sequence run is active."),
	}
	t.valves = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "labjacker",
		Name:      "valve_open",
		Help:      "1 when the valve is open.",
	}, []string{"valve"})
	reg.MustRegister(t.valves)

	if cfg.Broker != "" {
		t.topic = cfg.Topic
		if t.topic == "" {
			t.topic = "labjacker/status"
		}
		clientID := cfg.ClientID
		if clientID == "" {
			clientID = "labjacker"
		}
		opts := mqtt.NewClientOptions().
			AddBroker(cfg.Broker).
			SetClientID(clientID).
			SetUsername(cfg.Username).
			SetPassword(cfg.Password).
			SetAutoReconnect(true)
		client := mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("telemetry: mqtt connect %s: %v", cfg.Broker, token.Error())
		} else {
			t.mqttClient = client
		}
	}
	return t
}

func setReading(g prometheus.Gauge, r status.Reading) {
	if r.Valid {
		g.Set(r.Value)
	}
}

// Emit publishes one snapshot to the gauges and, when configured, to MQTT.
func (t *Telemetry) Emit(snap status.Snapshot) {
	setReading(t.temperature, snap.Temperature)
	setReading(t.ain0, snap.AIN0)
	setReading(t.ain1, snap.AIN1)
	setReading(t.voltageDiff, snap.VoltageDiff)
	setReading(t.pressure, snap.Pressure)
	for i, s := range snap.Valves {
		v := 0.0
		if s == status.Open {
			v = 1.0
		}
		t.valves.WithLabelValues(fmt.Sprintf("%d", i+1)).Set(v)
	}
	if snap.Running {
		t.running.Set(1)
	} else {
		t.running.Set(0)
	}

	if t.mqttClient != nil {
		if data, err := json.Marshal(snap); err == nil {
			t.mqttClient.Publish(t.topic, 0, false, data)
		}
	}
}

// Close disconnects the MQTT client if one is connected.
func (t *Telemetry) Close() {
	if t.mqttClient != nil {
		t.mqttClient.Disconnect(250)
	}
}
