package http

import (
	"encoding/json"

	"github.com/vovakirdan/yapyard-server/internal/core"
	"github.com/vovakirdan/yapyard-server/internal/proto"
	"github.com/vovakirdan/yapyard-server/internal/store"
)

// inboundToSubmission only decodes; the relay validates content and receiver
// in that order.
func inboundToSubmission(inbound proto.Inbound) (core.Submission, error) {
	var data proto.SendMessageData
	if err := json.Unmarshal(inbound.Data, &data); err != nil {
		return core.Submission{}, err
	}
	return core.Submission{
		ReceiverID: core.UserID(data.ReceiverID),
		Text:       data.Text,
		Image:      data.Image,
	}, nil
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventOnlineUsers:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventGetOnlineUsers,
			Data:  proto.OnlineIDs(event.Online),
		}
	case core.EventNewMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNewMessage,
			Data:  proto.FromMessage(event.Message),
		}
	case core.EventMessageError:
		data := proto.MessageErrorData{Error: "failed to send message"}
		if event.Error != nil {
			data = proto.MessageErrorData{Error: event.Error.Message, Code: event.Error.Code}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageError,
			Data:  data,
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func userPayload(u *store.User) proto.UserPayload {
	return proto.UserPayload{
		ID:         u.ID,
		Email:      u.Email,
		FullName:   u.FullName,
		Bio:        u.Bio,
		ProfilePic: u.ProfilePic,
		CreatedAt:  u.CreatedAt,
	}
}

// contactPayload hides the email of other users.
func contactPayload(u *store.User) proto.UserPayload {
	p := userPayload(u)
	p.Email = ""
	return p
}
