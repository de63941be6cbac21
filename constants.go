package someipc

import "github.com/someipc/go-someipc/internal/wire"

// Re-exported wire-protocol constants for the public API.
const (
	ProtocolVersion = wire.ProtocolVersion

	MsgRelease            = wire.MsgRelease
	MsgOffer              = wire.MsgOffer
	MsgStopOffer          = wire.MsgStopOffer
	MsgSubscribe          = wire.MsgSubscribe
	MsgUnsubscribe        = wire.MsgUnsubscribe
	MsgStartServiceDisc   = wire.MsgStartServiceDisc
	MsgStopServiceDisc    = wire.MsgStopServiceDisc
	MsgRequestService     = wire.MsgRequestService
	MsgRequestLocalServer = wire.MsgRequestLocalServer

	MsgRoutingSomeIP          = wire.MsgRoutingSomeIP
	MsgRoutingSomeIPWithMeta  = wire.MsgRoutingSomeIPWithMeta
	MsgEventSubscriptionState = wire.MsgEventSubscriptionState
	MsgRoutingPDU             = wire.MsgRoutingPDU
	MsgServiceInstanceUp      = wire.MsgServiceInstanceUp
	MsgServiceInstanceDown    = wire.MsgServiceInstanceDown
	MsgRoutingPDUWithMeta     = wire.MsgRoutingPDUWithMeta
	MsgInitialFieldNotif      = wire.MsgInitialFieldNotif
)
