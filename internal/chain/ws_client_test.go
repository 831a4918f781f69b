package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// drain keeps a server connection open until the client goes away.
func drain(c *websocket.Conn) {
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

func TestWSClient_SubscribeLogs(t *testing.T) {
	ledger := common.HexToAddress(ledgerAddress)
	topic := common.HexToHash("0x01")
	requests := make(chan wsRequest, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			return
		}
		requests <- req

		c.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  "0xabc123",
		})

		time.Sleep(50 * time.Millisecond)
		c.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "eth_subscription",
			"params": map[string]interface{}{
				"subscription": "0xabc123",
				"result": map[string]interface{}{
					"address":         ledger.Hex(),
					"blockNumber":     "0x10",
					"transactionHash": common.HexToHash("0xfeed").Hex(),
					"topics":          []string{topic.Hex()},
					"removed":         false,
				},
			},
		})

		drain(c)
	}))
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil, nil)
	require.NoError(t, err)
	defer client.Close()

	ch, err := client.SubscribeLogs(ctx, LogsFilter{
		Addresses: []common.Address{ledger},
		EventIDs:  []common.Hash{topic},
	})
	require.NoError(t, err)

	req := <-requests
	assert.Equal(t, "eth_subscribe", req.Method)
	require.Len(t, req.Params, 2)
	assert.Equal(t, "logs", req.Params[0])
	params, ok := req.Params[1].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{ledger.Hex()}, params["address"])
	assert.Equal(t, []interface{}{[]interface{}{topic.Hex()}}, params["topics"])

	select {
	case notif := <-ch:
		assert.Equal(t, ledger, notif.Address)
		assert.Equal(t, uint64(16), notif.BlockNumber)
		assert.Equal(t, common.HexToHash("0xfeed"), notif.TxHash)
		assert.Equal(t, []common.Hash{topic}, notif.Topics)
		assert.False(t, notif.Removed)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for log notification")
	}
}

func TestWSClient_SubscribeTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		drain(c)
	}))
	defer server.Close()

	cfg := DefaultWSConfig()
	cfg.SubscribeTimeout = 50 * time.Millisecond

	client, err := NewWSClient(context.Background(), wsURL(server), &cfg, nil)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.SubscribeLogs(context.Background(), LogsFilter{})
	assert.Error(t, err)
}

func TestWSClient_Close(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		drain(c)
	}))
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil, nil)
	require.NoError(t, err)

	require.NoError(t, client.Close())
	assert.True(t, client.closed.Load())

	// Close is idempotent.
	assert.NoError(t, client.Close())

	_, err = client.SubscribeLogs(context.Background(), LogsFilter{})
	assert.Error(t, err)
}

func TestWSClient_DialError(t *testing.T) {
	_, err := NewWSClient(context.Background(), "ws://127.0.0.1:1", nil, nil)
	assert.Error(t, err)
}
