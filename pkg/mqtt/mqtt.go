// Package mqtt publishes XP events to the broker and answers level queries from
// other services with a request/response protocol over correlation IDs.
package mqtt

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PancyStudios/PancyCommunityGo/pkg/leveling"
	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Topic namespace shared by every PancyCommunity service
const (
	TopicRoot     = "pancycommunity"
	requestRoot   = TopicRoot + "/request/"
	responseRoot  = TopicRoot + "/response/"
	xpEventsTopic = TopicRoot + "/events/xp/"
)

const connectTimeout = 10 * time.Second

// MqttRequest represents an MQTT request message
type MqttRequest struct {
	CorrelationID string                 `json:"correlationId"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
}

// MqttResponse represents an MQTT response message
type MqttResponse struct {
	CorrelationID string      `json:"correlationId"`
	Data          interface{} `json:"data"`
	Error         string      `json:"error,omitempty"`
}

// RequestHandler is a function type for handling MQTT requests
type RequestHandler func(payload map[string]interface{}) (interface{}, error)

// MqttCommunicator handles MQTT communication
type MqttCommunicator struct {
	client   mqtt.Client
	clientID string
}

var (
	communicator *MqttCommunicator
	once         sync.Once
)

// Init initializes the global MQTT communicator
func Init(host, port, username, password, clientID string) *MqttCommunicator {
	once.Do(func() {
		communicator = NewMqttCommunicator(host, port, username, password, clientID)
	})
	return communicator
}

// Get returns the global MQTT communicator
func Get() *MqttCommunicator {
	return communicator
}

// NewMqttCommunicator creates a new MQTT communicator
func NewMqttCommunicator(host, port, username, password, clientID string) *MqttCommunicator {
	mc := &MqttCommunicator{clientID: clientID}

	uniqueID := fmt.Sprintf("%s_%s", clientID, uuid.New().String())

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%s", host, port)).
		SetClientID(uniqueID).
		SetUsername(username).
		SetPassword(password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(c mqtt.Client) {
			logger.Success(fmt.Sprintf("Conectado al broker MQTT como %s", clientID), "MQTT")
		}).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			logger.Error(fmt.Sprintf("Conexión MQTT perdida: %v", err), "MQTT")
		})

	mc.client = mqtt.NewClient(opts)

	// with ConnectRetry the token only completes once connected
	token := mc.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		logger.Warn("El broker MQTT no responde, se seguirá reintentando en segundo plano", "MQTT")
	} else if token.Error() != nil {
		logger.Error(fmt.Sprintf("Error de conexión MQTT: %v", token.Error()), "MQTT")
	}

	return mc
}

// Destroy closes the MQTT connection
func (mc *MqttCommunicator) Destroy() {
	if mc.client != nil && mc.client.IsConnected() {
		mc.client.Disconnect(250)
		logger.System("Conexión MQTT cerrada exitosamente.", "MQTT")
	} else {
		logger.Warn("El cliente MQTT no estaba conectado, no se necesita cerrar.", "MQTT")
	}
}

// IsConnected returns true if connected to the broker
func (mc *MqttCommunicator) IsConnected() bool {
	return mc.client != nil && mc.client.IsConnected()
}

// Publish sends a message to a topic and waits for the broker
func (mc *MqttCommunicator) Publish(topic string, payload interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	token := mc.client.Publish(topic, 0, false, jsonData)
	token.Wait()
	return token.Error()
}

// PublishXpEvent sends an XP event to pancycommunity/events/xp/<guildId> without waiting
// for the broker acknowledgement
func (mc *MqttCommunicator) PublishXpEvent(event leveling.XpEvent) {
	if !mc.IsConnected() {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error(fmt.Sprintf("Error serializando evento de XP: %v", err), "MQTT")
		return
	}
	token := mc.client.Publish(XpEventTopic(event.GuildID), 0, false, data)
	go func() {
		if token.WaitTimeout(connectTimeout) && token.Error() != nil {
			logger.Warn(fmt.Sprintf("Error publicando evento de XP: %v", token.Error()), "MQTT")
		}
	}()
}

// XpEventTopic returns the topic XP events of guildID are published on
func XpEventTopic(guildID string) string {
	return xpEventsTopic + guildID
}

// On registers a handler for a request topic. The reply goes to
// pancycommunity/response/<topic>/<correlationId>.
func (mc *MqttCommunicator) On(requestTopic string, callback RequestHandler) {
	topic := requestRoot + requestTopic

	token := mc.client.Subscribe(topic, 0, func(c mqtt.Client, msg mqtt.Message) {
		actualTopic := strings.TrimPrefix(msg.Topic(), requestRoot)
		response, ok := handleRequest(actualTopic, msg.Payload(), callback)
		if !ok {
			return
		}
		responseTopic := responseRoot + actualTopic + "/" + response.CorrelationID
		if err := mc.Publish(responseTopic, response); err != nil {
			logger.Warn(fmt.Sprintf("Error respondiendo a %s: %v", actualTopic, err), "MQTT")
		}
	})

	if token.Wait() && token.Error() != nil {
		logger.Error(fmt.Sprintf("Error suscribiendo a %s: %v", topic, token.Error()), "MQTT")
	}
}

// handleRequest decodes one request and runs callback on it. ok is false when the
// message is not a valid request and must not be answered.
func handleRequest(topic string, raw []byte, callback RequestHandler) (response MqttResponse, ok bool) {
	var request MqttRequest
	if err := json.Unmarshal(raw, &request); err != nil || request.CorrelationID == "" {
		logger.Error(fmt.Sprintf("Petición MQTT inválida en %s: %v", topic, err), "MQTT")
		return response, false
	}

	payload := request.Payload
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["_topic"] = topic

	response.CorrelationID = request.CorrelationID
	data, err := callback(payload)
	if err != nil {
		response.Error = err.Error()
		return response, true
	}
	response.Data = data
	return response, true
}
