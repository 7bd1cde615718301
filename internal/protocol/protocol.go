package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello     = "HELLO"
	TypeWelcome   = "WELCOME"
	TypeSetTile   = "SET_TILE"
	TypePaint     = "PAINT"
	TypeGetTile   = "GET_TILE"
	TypeAck       = "ACK"
	TypeTileEvent = "TILE_EVENT"
)

// BaseMessage lets us route unknown JSON messages by type and still echo
// the request id when rejecting them.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	ReqID           string `json:"req_id,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
