package rislive

import "encoding/json"

// SubscribeParams filters the feed the way RIS-Live's own subscribe
// message does; zero-value fields are omitted so an unfiltered
// subscription still round-trips to a small JSON object.
type SubscribeParams struct {
	Host        string   `json:"host,omitempty"`
	Type        string   `json:"type,omitempty"`
	Prefix      string   `json:"prefix,omitempty"`
	MoreSpecific bool    `json:"moreSpecific,omitempty"`
	LessSpecific bool    `json:"lessSpecific,omitempty"`
	Peer        string   `json:"peer,omitempty"`
	PeerAsn     string   `json:"peer_asn,omitempty"`
	Path        []uint32 `json:"path,omitempty"`
	SocketOptions *SocketOptions `json:"socketOptions,omitempty"`
}

type SocketOptions struct {
	IncludeRaw bool `json:"includeRaw,omitempty"`
}

// clientMessage is the envelope every outgoing frame shares: a type tag
// plus a type-specific data payload.
type clientMessage struct {
	Type ClientMessageType `json:"type"`
	Data any               `json:"data,omitempty"`
}

// EncodeSubscribe builds a ris_subscribe client frame.
func EncodeSubscribe(params SubscribeParams) ([]byte, error) {
	return json.Marshal(clientMessage{Type: ClientMsgSubscribe, Data: params})
}

// EncodeUnsubscribe builds a ris_unsubscribe client frame identifying the
// subscription by the id the server assigned it in ris_subscribe_ok.
func EncodeUnsubscribe(subscriptionID string) ([]byte, error) {
	return json.Marshal(clientMessage{Type: ClientMsgUnsubscribe, Data: map[string]string{"id": subscriptionID}})
}

// EncodePing builds a ping client frame.
func EncodePing() ([]byte, error) {
	return json.Marshal(clientMessage{Type: ClientMsgPing})
}

// EncodeRequestRrcList builds a request_rrc_list client frame.
func EncodeRequestRrcList() ([]byte, error) {
	return json.Marshal(clientMessage{Type: ClientMsgRequestRrcList})
}
