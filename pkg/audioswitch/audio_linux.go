package audioswitch

import (
	"fmt"
	"net"

	"github.com/jfreymuth/pulse/proto"
	"go.uber.org/zap"
)

// PulseAudio has no notion of endpoint visibility. A suspended sink or source is
// treated as hidden, which keeps it out of use the same way
const (
	sinkStateSuspended   = 2
	sourceStateSuspended = 2
)

type paSession struct {
	logger *zap.SugaredLogger

	client *proto.Client
	conn   net.Conn
}

func newAudioSession(logger *zap.SugaredLogger) (AudioSession, error) {
	logger = logger.Named("session")

	client, conn, err := proto.Connect("")
	if err != nil {
		logger.Warnw("Failed to establish PulseAudio connection", "error", err)
		return nil, &EnumerationError{Role: RoleOutput, Err: fmt.Errorf("establish PulseAudio connection: %w", err)}
	}

	request := proto.SetClientName{
		Props: proto.PropList{
			"application.name": proto.PropListString("audioswitch"),
		},
	}
	reply := proto.SetClientNameReply{}

	if err := client.Request(&request, &reply); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set PulseAudio client name: %w", err)
	}

	s := &paSession{
		logger: logger,
		client: client,
		conn:   conn,
	}

	logger.Debug("Opened PulseAudio session")

	return s, nil
}

func (s *paSession) Directory() EndpointDirectory {
	return s
}

func (s *paSession) Policy() EndpointPolicy {
	return s
}

func (s *paSession) Close() error {
	if err := s.conn.Close(); err != nil {
		s.logger.Warnw("Failed to close PulseAudio connection", "error", err)
		return fmt.Errorf("close PulseAudio connection: %w", err)
	}

	s.logger.Debug("Closed PulseAudio session")

	return nil
}

func (s *paSession) ListActive(role Role) ([]EndpointRef, error) {
	return s.list(role, false)
}

func (s *paSession) ListAll(role Role) ([]EndpointRef, error) {
	return s.list(role, true)
}

func (s *paSession) DefaultEndpoint(role Role) (string, error) {
	request := proto.GetServerInfo{}
	reply := proto.GetServerInfoReply{}

	if err := s.client.Request(&request, &reply); err != nil {
		return "", fmt.Errorf("get PulseAudio server info: %w", err)
	}

	if role == RoleInput {
		return reply.DefaultSourceName, nil
	}

	return reply.DefaultSinkName, nil
}

func (s *paSession) list(role Role, includeSuspended bool) ([]EndpointRef, error) {
	endpoints := []EndpointRef{}

	if role == RoleOutput {
		request := proto.GetSinkInfoList{}
		reply := proto.GetSinkInfoListReply{}

		if err := s.client.Request(&request, &reply); err != nil {
			return nil, &EnumerationError{Role: role, Err: err}
		}

		for _, sink := range reply {
			if sink == nil || (!includeSuspended && sink.State == sinkStateSuspended) {
				continue
			}

			endpoints = append(endpoints, EndpointRef{
				ID:   sink.SinkName,
				Name: describe(sink.Properties, sink.SinkName),
				Role: role,
			})
		}

		return endpoints, nil
	}

	request := proto.GetSourceInfoList{}
	reply := proto.GetSourceInfoListReply{}

	if err := s.client.Request(&request, &reply); err != nil {
		return nil, &EnumerationError{Role: role, Err: err}
	}

	for _, source := range reply {
		if source == nil || (!includeSuspended && source.State == sourceStateSuspended) {
			continue
		}

		// monitor sources mirror a sink, they aren't inputs
		if source.MonitorSourceIndex != proto.Undefined {
			continue
		}

		endpoints = append(endpoints, EndpointRef{
			ID:   source.SourceName,
			Name: describe(source.Properties, source.SourceName),
			Role: role,
		})
	}

	return endpoints, nil
}

func describe(props proto.PropList, fallback string) string {
	if props != nil {
		if desc, ok := props["device.description"]; ok && desc.String() != "" {
			return desc.String()
		}
	}

	return fallback
}

func (s *paSession) SetVisibility(endpoint EndpointRef, visible bool) error {
	var request proto.RequestArgs

	if endpoint.Role == RoleInput {
		request = &proto.SuspendSource{
			SourceIndex: proto.Undefined,
			SourceName:  endpoint.ID,
			Suspend:     !visible,
		}
	} else {
		request = &proto.SuspendSink{
			SinkIndex: proto.Undefined,
			SinkName:  endpoint.ID,
			Suspend:   !visible,
		}
	}

	if err := s.client.Request(request, nil); err != nil {
		return fmt.Errorf("suspend %s (%t): %w", endpoint.ID, !visible, err)
	}

	return nil
}

func (s *paSession) SetDefault(endpoint EndpointRef) error {
	var request proto.RequestArgs

	if endpoint.Role == RoleInput {
		request = &proto.SetDefaultSource{SourceName: endpoint.ID}
	} else {
		request = &proto.SetDefaultSink{SinkName: endpoint.ID}
	}

	if err := s.client.Request(request, nil); err != nil {
		return fmt.Errorf("set default %s: %w", endpoint.ID, err)
	}

	return nil
}
