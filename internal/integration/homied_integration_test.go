//go:build integration
// +build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/johnpc/jpc-homie/internal/adapters/idgen"
	"github.com/johnpc/jpc-homie/internal/adapters/mqtt"
	"github.com/johnpc/jpc-homie/internal/hass"
	embeddedmqtt "github.com/johnpc/jpc-homie/internal/modules/embedded_mqtt"
	"github.com/johnpc/jpc-homie/internal/modules/events"
	"github.com/johnpc/jpc-homie/internal/queuesync"
	"github.com/johnpc/jpc-homie/pkg/homie"
)

const testEntity = "media_player.sonos"

// fakeHomeAssistant serves the two endpoints the daemon reads.
func fakeHomeAssistant(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/services/music_assistant/get_queue", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"service_response":{%q:{"queue_id":"q-sonos","current_index":0,"items":2,
			"current_item":{"name":"First","duration":201},
			"next_item":{"name":"Second","duration":180}}}}`, testEntity)
	})
	mux.HandleFunc("/api/states/"+testEntity, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"state":"playing","attributes":{"media_title":"First","media_artist":"Ann"}}`)
	})
	return httptest.NewServer(mux)
}

// fakeMusicAssistant answers item listings on the one-shot endpoint.
func fakeMusicAssistant(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env struct {
			MessageID string `json:"message_id"`
			Command   string `json:"command"`
		}
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if env.Command != "player_queues/items" {
			http.Error(w, "unexpected command", http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"message_id":%q,"result":{"items":[
			{"queue_item_id":"item-a","name":"First","duration":201},
			{"queue_item_id":"item-b","name":"Second","duration":180}],"total":2}}`, env.MessageID)
	}))
}

func freeListenAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

// TestEventsPublishThroughEmbeddedBroker runs the embedded broker, the
// event publisher and real HTTP clients against fake backends, then
// verifies subscribers see the player state and queue snapshot.
func TestEventsPublishThroughEmbeddedBroker(t *testing.T) {
	ha := fakeHomeAssistant(t)
	defer ha.Close()
	ma := fakeMusicAssistant(t)
	defer ma.Close()

	logger := zap.NewNop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listen := freeListenAddr(t)
	broker, err := embeddedmqtt.NewModule(logger, embeddedmqtt.Config{Listen: listen, AllowAnonymous: true})
	if err != nil {
		t.Fatalf("embedded mqtt: %v", err)
	}
	go func() { _ = broker.Run(ctx) }()
	waitForBroker(t, listen)

	players, err := hass.NewClient(logger, ha.URL, "test-token", time.Second)
	if err != nil {
		t.Fatalf("hass client: %v", err)
	}
	codec := queuesync.Codec{IDs: idgen.Generator{}}
	oneshot, err := queuesync.NewClient(logger, ma.URL, "test-token", codec, time.Second)
	if err != nil {
		t.Fatalf("queue client: %v", err)
	}
	resolver := queuesync.Resolver{Log: logger, Players: players, Queue: oneshot}

	brokerURL := embeddedmqtt.BrokerURL(listen)
	pub, err := mqtt.NewClient(mqtt.Options{
		BrokerURL: brokerURL,
		ClientID:  "homied-itest",
		Timeout:   2 * time.Second,
	})
	if err != nil {
		t.Fatalf("mqtt client: %v", err)
	}
	defer pub.Close()

	queueCh := make(chan []byte, 1)
	stateCh := make(chan []byte, 1)
	sub := subscriber(t, brokerURL, map[string]chan []byte{
		"homie/v1/player/" + testEntity + "/state": stateCh,
		"homie/v1/player/" + testEntity + "/queue": queueCh,
	})
	defer sub.Disconnect(250)

	mod, err := events.NewModule(logger, events.Config{
		EntityID: testEntity,
		Interval: time.Hour,
	}, pub, resolver, players)
	if err != nil {
		t.Fatalf("events module: %v", err)
	}
	go func() { _ = mod.Run(ctx) }()

	var state homie.PlayerStatus
	unmarshalFrom(t, stateCh, &state, "player state")
	if state.State != "playing" || state.Title != "First" {
		t.Fatalf("state payload = %+v", state)
	}

	var snap homie.QueueSnapshot
	unmarshalFrom(t, queueCh, &snap, "queue snapshot")
	if len(snap.Queue) != 2 || snap.Limited {
		t.Fatalf("queue payload = %+v", snap)
	}
	if snap.Queue[1].QueueItemID != "item-b" {
		t.Fatalf("queue items = %+v", snap.Queue)
	}
}

func subscriber(t *testing.T, brokerURL string, topics map[string]chan []byte) paho.Client {
	t.Helper()
	opts := paho.NewClientOptions().AddBroker(brokerURL).SetClientID("homie-itest-sub")
	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		t.Fatalf("subscriber connect: %v", token.Error())
	}
	for topic, ch := range topics {
		out := ch
		token := client.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
			select {
			case out <- msg.Payload():
			default:
			}
		})
		if token.Wait() && token.Error() != nil {
			t.Fatalf("subscribe %s: %v", topic, token.Error())
		}
	}
	return client
}

func unmarshalFrom(t *testing.T, ch <-chan []byte, out any, what string) {
	t.Helper()
	select {
	case raw := <-ch:
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("decode %s: %v", what, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for %s", what)
	}
}

func waitForBroker(t *testing.T, listen string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", listen, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("embedded broker never came up at %s", listen)
}
