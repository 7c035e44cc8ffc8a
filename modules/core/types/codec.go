package types

import (
	tmjson "github.com/tendermint/tendermint/libs/json"
)

// The concrete message types are registered with the amino-compatible JSON
// codec so a Tx can carry them behind the Msg interface. The registered names
// are part of the wire format and must not change.
func init() {
	tmjson.RegisterType(&MsgCreateClient{}, "ibc/MsgCreateClient")
	tmjson.RegisterType(&MsgUpdateClient{}, "ibc/MsgUpdateClient")
	tmjson.RegisterType(&MsgConnectionOpenInit{}, "ibc/MsgConnectionOpenInit")
	tmjson.RegisterType(&MsgConnectionOpenTry{}, "ibc/MsgConnectionOpenTry")
	tmjson.RegisterType(&MsgConnectionOpenAck{}, "ibc/MsgConnectionOpenAck")
	tmjson.RegisterType(&MsgConnectionOpenConfirm{}, "ibc/MsgConnectionOpenConfirm")
	tmjson.RegisterType(&MsgChannelOpenInit{}, "ibc/MsgChannelOpenInit")
	tmjson.RegisterType(&MsgChannelOpenTry{}, "ibc/MsgChannelOpenTry")
	tmjson.RegisterType(&MsgChannelOpenAck{}, "ibc/MsgChannelOpenAck")
	tmjson.RegisterType(&MsgChannelOpenConfirm{}, "ibc/MsgChannelOpenConfirm")
	tmjson.RegisterType(&MsgChannelCloseInit{}, "ibc/MsgChannelCloseInit")
	tmjson.RegisterType(&MsgChannelCloseConfirm{}, "ibc/MsgChannelCloseConfirm")
	tmjson.RegisterType(&MsgRecvPacket{}, "ibc/MsgRecvPacket")
	tmjson.RegisterType(&MsgAcknowledgement{}, "ibc/MsgAcknowledgement")
	tmjson.RegisterType(&MsgTimeout{}, "ibc/MsgTimeout")
}
