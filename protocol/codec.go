package protocol

import (
	"errors"
	"sort"
)

// Decode errors. A line that fails to decode has no effect on either side.
var (
	ErrEmptyLine     = errors.New("empty line")
	ErrUnknownToken  = errors.New("unknown token")
	ErrMissingField  = errors.New("missing field")
	ErrTrailingField = errors.New("unexpected trailing field")
	ErrInvalidField  = errors.New("invalid field")
)

// IsDecodeError reports whether err came from decoding a malformed line
func IsDecodeError(err error) bool {
	for _, target := range []error{ErrEmptyLine, ErrUnknownToken, ErrMissingField, ErrTrailingField, ErrInvalidField} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Message is a single wire line without its terminator.
type Message interface {
	// Token is the literal first word of the line
	Token() string

	appendFields(b []byte) []byte
}

// Command is a message sent from the host to the controller.
type Command interface {
	Message
	isCommand()
}

// Response is a message sent from the controller to the host.
type Response interface {
	Message
	isResponse()
}

// Commands

// IsCalibrated asks whether the rail has been homed.
type IsCalibrated struct{}

// CalibrateSideways homes the rail axis.
type CalibrateSideways struct{}

// CalibrateArm homes both arm joints.
type CalibrateArm struct{}

// MoveSideways sets the rail target, in metres.
type MoveSideways struct{ Offset float32 }

// MoveTopArm sets the top joint target, in degrees.
type MoveTopArm struct{ Angle float32 }

// MoveBottomArm sets the bottom joint target, in degrees.
type MoveBottomArm struct{ Angle float32 }

// Queue appends a waypoint to the controller's motion queue.
type Queue struct {
	Bottom float32 // bottom joint, degrees
	Top    float32 // top joint, degrees
	Rail   float32 // rail offset, metres
	Speed  float32 // speed scale in (0, 1]
}

// QueueSize asks for the motion queue depth.
type QueueSize struct{}

// Position asks for the current joint and rail values.
type Position struct{}

// Grip closes the gripper.
type Grip struct{}

// Release opens the gripper.
type Release struct{}

// ChessButton reads and clears the chess clock button latch.
type ChessButton struct{}

// RestartToBoot reboots the controller into its firmware-update mode.
type RestartToBoot struct{}

// Magnets reads the two magnet sensors.
type Magnets struct{}

func (IsCalibrated) Token() string      { return "iscal" }
func (CalibrateSideways) Token() string { return "calsid" }
func (CalibrateArm) Token() string      { return "calarm" }
func (MoveSideways) Token() string      { return "mvs" }
func (MoveTopArm) Token() string        { return "mvt" }
func (MoveBottomArm) Token() string     { return "mvb" }
func (Queue) Token() string             { return "q" }
func (QueueSize) Token() string         { return "qs" }
func (Position) Token() string          { return "pos" }
func (Grip) Token() string              { return "grip" }
func (Release) Token() string           { return "rel" }
func (ChessButton) Token() string       { return "chessbtn" }
func (RestartToBoot) Token() string     { return "boot" }
func (Magnets) Token() string           { return "mag" }

func (IsCalibrated) appendFields(b []byte) []byte      { return b }
func (CalibrateSideways) appendFields(b []byte) []byte { return b }
func (CalibrateArm) appendFields(b []byte) []byte      { return b }
func (c MoveSideways) appendFields(b []byte) []byte    { return appendF32(b, c.Offset) }
func (c MoveTopArm) appendFields(b []byte) []byte      { return appendF32(b, c.Angle) }
func (c MoveBottomArm) appendFields(b []byte) []byte   { return appendF32(b, c.Angle) }
func (QueueSize) appendFields(b []byte) []byte         { return b }
func (Position) appendFields(b []byte) []byte          { return b }
func (Grip) appendFields(b []byte) []byte              { return b }
func (Release) appendFields(b []byte) []byte           { return b }
func (ChessButton) appendFields(b []byte) []byte       { return b }
func (RestartToBoot) appendFields(b []byte) []byte     { return b }
func (Magnets) appendFields(b []byte) []byte           { return b }

func (c Queue) appendFields(b []byte) []byte {
	b = appendF32(b, c.Bottom)
	b = appendF32(b, c.Top)
	b = appendF32(b, c.Rail)
	return appendF32(b, c.Speed)
}

func (IsCalibrated) isCommand()      {}
func (CalibrateSideways) isCommand() {}
func (CalibrateArm) isCommand()      {}
func (MoveSideways) isCommand()      {}
func (MoveTopArm) isCommand()        {}
func (MoveBottomArm) isCommand()     {}
func (Queue) isCommand()             {}
func (QueueSize) isCommand()         {}
func (Position) isCommand()          {}
func (Grip) isCommand()              {}
func (Release) isCommand()           {}
func (ChessButton) isCommand()       {}
func (RestartToBoot) isCommand()     {}
func (Magnets) isCommand()           {}

// Responses

// CalibrationState answers IsCalibrated.
type CalibrationState struct{ Calibrated bool }

// QueueState answers QueueSize.
type QueueState struct {
	Len uint32 // entries accepted but not yet started
	Cap uint32 // queue capacity
}

// PositionReport answers Position.
type PositionReport struct {
	Bottom float32 // degrees
	Top    float32 // degrees
	Rail   float32 // metres
}

// ChessButtonState answers ChessButton.
type ChessButtonState struct{ Pressed bool }

// MagnetReading answers Magnets with readings normalised to [0, 1].
type MagnetReading struct{ A, B float32 }

// FaultReport is sent unsolicited when the controller halts.
type FaultReport struct{ Code uint32 }

func (CalibrationState) Token() string { return "iscal" }
func (QueueState) Token() string       { return "qs" }
func (PositionReport) Token() string   { return "pos" }
func (ChessButtonState) Token() string { return "chessbtn" }
func (MagnetReading) Token() string    { return "magnets" }
func (FaultReport) Token() string      { return "fault" }

func (r CalibrationState) appendFields(b []byte) []byte { return appendBool(b, r.Calibrated) }
func (r ChessButtonState) appendFields(b []byte) []byte { return appendBool(b, r.Pressed) }
func (r FaultReport) appendFields(b []byte) []byte      { return appendU32(b, r.Code) }

func (r QueueState) appendFields(b []byte) []byte {
	b = appendU32(b, r.Len)
	return appendU32(b, r.Cap)
}

func (r PositionReport) appendFields(b []byte) []byte {
	b = appendF32(b, r.Bottom)
	b = appendF32(b, r.Top)
	return appendF32(b, r.Rail)
}

func (r MagnetReading) appendFields(b []byte) []byte {
	b = appendF32(b, r.A)
	return appendF32(b, r.B)
}

func (CalibrationState) isResponse() {}
func (QueueState) isResponse()       {}
func (PositionReport) isResponse()   {}
func (ChessButtonState) isResponse() {}
func (MagnetReading) isResponse()    {}
func (FaultReport) isResponse()      {}

var commandDecoders = map[string]func(r *fieldReader) Command{
	"iscal":  func(*fieldReader) Command { return IsCalibrated{} },
	"calsid": func(*fieldReader) Command { return CalibrateSideways{} },
	"calarm": func(*fieldReader) Command { return CalibrateArm{} },
	"mvs":    func(r *fieldReader) Command { return MoveSideways{Offset: r.f32()} },
	"mvt":    func(r *fieldReader) Command { return MoveTopArm{Angle: r.f32()} },
	"mvb":    func(r *fieldReader) Command { return MoveBottomArm{Angle: r.f32()} },
	"q": func(r *fieldReader) Command {
		return Queue{Bottom: r.f32(), Top: r.f32(), Rail: r.f32(), Speed: r.f32()}
	},
	"qs":       func(*fieldReader) Command { return QueueSize{} },
	"pos":      func(*fieldReader) Command { return Position{} },
	"grip":     func(*fieldReader) Command { return Grip{} },
	"rel":      func(*fieldReader) Command { return Release{} },
	"chessbtn": func(*fieldReader) Command { return ChessButton{} },
	"boot":     func(*fieldReader) Command { return RestartToBoot{} },
	"mag":      func(*fieldReader) Command { return Magnets{} },
}

var responseDecoders = map[string]func(r *fieldReader) Response{
	"iscal": func(r *fieldReader) Response { return CalibrationState{Calibrated: r.boolean()} },
	"qs":    func(r *fieldReader) Response { return QueueState{Len: r.u32(), Cap: r.u32()} },
	"pos": func(r *fieldReader) Response {
		return PositionReport{Bottom: r.f32(), Top: r.f32(), Rail: r.f32()}
	},
	"chessbtn": func(r *fieldReader) Response { return ChessButtonState{Pressed: r.boolean()} },
	"magnets":  func(r *fieldReader) Response { return MagnetReading{A: r.f32(), B: r.f32()} },
	"fault":    func(r *fieldReader) Response { return FaultReport{Code: r.u32()} },
}

// Append appends the wire form of m, without terminator, to b.
func Append(b []byte, m Message) []byte {
	b = append(b, m.Token()...)
	return m.appendFields(b)
}

// Encode returns the wire form of m without a line terminator.
func Encode(m Message) string {
	return string(Append(make([]byte, 0, 48), m))
}

// DecodeCommand parses one line (terminator optional) into a Command.
func DecodeCommand(line string) (Command, error) {
	token, fields, err := splitLine(line)
	if err != nil {
		return nil, err
	}
	decode, ok := commandDecoders[token]
	if !ok {
		return nil, ErrUnknownToken
	}
	r := newFieldReader(fields)
	cmd := decode(r)
	if err := r.finish(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// DecodeResponse parses one line (terminator optional) into a Response.
func DecodeResponse(line string) (Response, error) {
	token, fields, err := splitLine(line)
	if err != nil {
		return nil, err
	}
	decode, ok := responseDecoders[token]
	if !ok {
		return nil, ErrUnknownToken
	}
	r := newFieldReader(fields)
	resp := decode(r)
	if err := r.finish(); err != nil {
		return nil, err
	}
	return resp, nil
}

// replyTokens maps each query token to the token of its reply. Commands not
// listed get no reply.
var replyTokens = map[string]string{
	"iscal":    "iscal",
	"qs":       "qs",
	"pos":      "pos",
	"chessbtn": "chessbtn",
	"mag":      "magnets",
}

// ExpectsReply reports whether the controller answers cmd
func ExpectsReply(cmd Command) bool {
	_, ok := replyTokens[cmd.Token()]
	return ok
}

// Answers reports whether resp is the reply to cmd
func Answers(cmd Command, resp Response) bool {
	return replyTokens[cmd.Token()] == resp.Token()
}

// CommandTokens lists every command token the codec understands, sorted
func CommandTokens() []string {
	tokens := make([]string, 0, len(commandDecoders))
	for t := range commandDecoders {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}
