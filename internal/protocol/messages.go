package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ClientName      string            `json:"client_name"`
	Capabilities    HelloCapabilities `json:"capabilities,omitempty"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	WorldParams     WorldParams `json:"world_params"`
	Palette         DigestRef   `json:"palette"`
	Atlas           string      `json:"atlas,omitempty"`
}

type WorldParams struct {
	WorldID        string `json:"world_id"`
	ChunkSize      int    `json:"chunk_size"`
	DefaultTile    string `json:"default_tile"`
	BrushMaxRadius int    `json:"brush_max_radius"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// SET_TILE (client -> server): write one cell.
type SetTileMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	X               int    `json:"x"`
	Y               int    `json:"y"`
	Tile            string `json:"tile"`
}

// PAINT (client -> server): square brush write.
type PaintMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	X               int    `json:"x"`
	Y               int    `json:"y"`
	Radius          int    `json:"radius"`
	Tile            string `json:"tile"`
}

// GET_TILE (client -> server): read one cell.
type GetTileMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	X               int    `json:"x"`
	Y               int    `json:"y"`
}

// ACK (server -> client): reply to SET_TILE, PAINT and GET_TILE.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	Result          string `json:"result,omitempty"` // UPDATED | NO_CHANGE
	Tile            string `json:"tile,omitempty"`   // GET_TILE reply
	Updated         int    `json:"updated,omitempty"`
}

// TILE_EVENT (server -> client): pushed for every world mutation the
// session did not necessarily cause itself.
type TileEventMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Kind            string `json:"kind"` // tile | chunk_created | chunk_removed | storage_kind
	CX              int    `json:"cx"`
	CY              int    `json:"cy"`
	X               int    `json:"x,omitempty"`
	Y               int    `json:"y,omitempty"`
	Old             string `json:"old,omitempty"`
	New             string `json:"new,omitempty"`
	Result          string `json:"result,omitempty"`
	OldKind         string `json:"old_kind,omitempty"`
	NewKind         string `json:"new_kind,omitempty"`
}
