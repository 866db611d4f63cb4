package mpris

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
	"github.com/sirupsen/logrus"
)

// Server owns the MPRIS bus name and exported objects.
type Server struct {
	conn    *dbus.Conn
	busName string
	mirror  *Mirror
	logger  *logrus.Logger
}

// Export publishes the MPRIS interfaces on conn and requests busName, which
// must start with org.mpris.MediaPlayer2.
func Export(conn *dbus.Conn, busName, identity string, controls Controls, logger *logrus.Logger) (*Server, error) {
	root := &rootMethods{logger: logger}
	methods := &playerMethods{controls: controls, logger: logger}

	props, err := prop.Export(conn, objectPath, prop.Map{
		rootInterface:   rootProperties(identity),
		playerInterface: playerProperties(),
	})
	if err != nil {
		return nil, fmt.Errorf("export properties: %w", err)
	}

	mirror := newMirror(props, logger)
	methods.mirror = mirror

	if err := conn.Export(root, objectPath, rootInterface); err != nil {
		return nil, fmt.Errorf("export %s: %w", rootInterface, err)
	}
	if err := conn.Export(methods, objectPath, playerInterface); err != nil {
		return nil, fmt.Errorf("export %s: %w", playerInterface, err)
	}

	node := &introspect.Node{
		Name: objectPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name:       rootInterface,
				Methods:    introspect.Methods(root),
				Properties: props.Introspection(rootInterface),
			},
			{
				Name:       playerInterface,
				Methods:    introspect.Methods(methods),
				Properties: props.Introspection(playerInterface),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), objectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, fmt.Errorf("export introspection: %w", err)
	}

	reply, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, fmt.Errorf("request bus name %s: %w", busName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, fmt.Errorf("bus name %s already taken", busName)
	}

	logger.WithField("bus_name", busName).Info("MPRIS player exported")

	return &Server{conn: conn, busName: busName, mirror: mirror, logger: logger}, nil
}

// Mirror returns the session sink backed by the exported properties
func (s *Server) Mirror() *Mirror {
	return s.mirror
}

// Close releases the bus name.
func (s *Server) Close() error {
	if _, err := s.conn.ReleaseName(s.busName); err != nil {
		return fmt.Errorf("release bus name: %w", err)
	}
	return nil
}

func rootProperties(identity string) map[string]*prop.Prop {
	return map[string]*prop.Prop{
		"CanQuit":             {Value: false, Emit: prop.EmitConst},
		"CanRaise":            {Value: false, Emit: prop.EmitConst},
		"HasTrackList":        {Value: false, Emit: prop.EmitConst},
		"Identity":            {Value: identity, Emit: prop.EmitConst},
		"SupportedUriSchemes": {Value: []string{"mediasession"}, Emit: prop.EmitConst},
		"SupportedMimeTypes":  {Value: []string{"audio/mpeg", "audio/flac", "audio/wav"}, Emit: prop.EmitConst},
	}
}

func playerProperties() map[string]*prop.Prop {
	return map[string]*prop.Prop{
		"PlaybackStatus": {Value: "Stopped", Emit: prop.EmitTrue},
		"LoopStatus":     {Value: "None", Emit: prop.EmitConst},
		"Rate":           {Value: 1.0, Emit: prop.EmitConst},
		"Shuffle":        {Value: false, Emit: prop.EmitConst},
		"Metadata":       {Value: metadataMap(nil), Emit: prop.EmitTrue},
		"Volume":         {Value: 1.0, Emit: prop.EmitConst},
		"Position":       {Value: int64(0), Emit: prop.EmitFalse},
		"MinimumRate":    {Value: 1.0, Emit: prop.EmitConst},
		"MaximumRate":    {Value: 1.0, Emit: prop.EmitConst},
		"CanGoNext":      {Value: true, Emit: prop.EmitTrue},
		"CanGoPrevious":  {Value: true, Emit: prop.EmitTrue},
		"CanPlay":        {Value: true, Emit: prop.EmitTrue},
		"CanPause":       {Value: true, Emit: prop.EmitTrue},
		"CanSeek":        {Value: false, Emit: prop.EmitTrue},
		"CanControl":     {Value: true, Emit: prop.EmitConst},
	}
}
