package core

import "github.com/02alexander/robby-fischer/protocol"

func (c *ArmController) registerCommands() {
	r := c.registry

	// Queries are answered even while halted
	r.Register("iscal", func(protocol.Command) (protocol.Response, error) {
		return protocol.CalibrationState{Calibrated: c.sidewaysCalibrated}, nil
	})
	r.Register("qs", func(protocol.Command) (protocol.Response, error) {
		return protocol.QueueState{Len: uint32(c.queue.Len()), Cap: uint32(c.queue.Cap())}, nil
	})
	r.Register("pos", func(protocol.Command) (protocol.Response, error) {
		return c.position(), nil
	})
	r.Register("chessbtn", func(protocol.Command) (protocol.Response, error) {
		pressed := c.chessPressed
		c.chessPressed = false
		return protocol.ChessButtonState{Pressed: pressed}, nil
	})
	r.Register("mag", func(protocol.Command) (protocol.Response, error) {
		return protocol.MagnetReading{
			A: readAnalog(c.magnets[0]),
			B: readAnalog(c.magnets[1]),
		}, nil
	})
	r.Register("boot", func(protocol.Command) (protocol.Response, error) {
		if c.reboot != nil {
			c.reboot()
		}
		return nil, nil
	})

	// Motion
	r.Register("calsid", c.motion(func(protocol.Command) (protocol.Response, error) {
		if err := c.calibrateSideways(); err != nil {
			return protocol.FaultReport{Code: c.fault}, err
		}
		return nil, nil
	}))
	r.Register("calarm", c.motion(func(protocol.Command) (protocol.Response, error) {
		if err := c.calibrateArm(); err != nil {
			return protocol.FaultReport{Code: c.fault}, err
		}
		return nil, nil
	}))
	r.Register("mvb", c.motion(func(cmd protocol.Command) (protocol.Response, error) {
		return nil, c.moveTo(c.bottom, &c.cfg.Bottom, cmd.(protocol.MoveBottomArm).Angle)
	}))
	r.Register("mvt", c.motion(func(cmd protocol.Command) (protocol.Response, error) {
		return nil, c.moveTo(c.top, &c.cfg.Top, cmd.(protocol.MoveTopArm).Angle)
	}))
	r.Register("mvs", c.motion(func(cmd protocol.Command) (protocol.Response, error) {
		return nil, c.moveTo(c.rail, &c.cfg.Rail, cmd.(protocol.MoveSideways).Offset)
	}))
	r.Register("q", c.motion(func(cmd protocol.Command) (protocol.Response, error) {
		q := cmd.(protocol.Queue)
		if !finite(q.Bottom) || !finite(q.Top) || !finite(q.Rail) {
			return nil, ErrInvalidTarget
		}
		return nil, c.queue.Push(MotionEntry{
			Bottom: q.Bottom,
			Top:    q.Top,
			Rail:   q.Rail,
			Speed:  c.clampSpeed(q.Speed),
		})
	}))
	r.Register("grip", c.motion(func(protocol.Command) (protocol.Response, error) {
		return nil, c.gripper.Grip()
	}))
	r.Register("rel", c.motion(func(protocol.Command) (protocol.Response, error) {
		return nil, c.gripper.Release()
	}))
}

// motion wraps a handler that moves hardware so it is refused while halted
func (c *ArmController) motion(h CommandHandler) CommandHandler {
	return func(cmd protocol.Command) (protocol.Response, error) {
		if c.halted {
			return c.faulted()
		}
		return h(cmd)
	}
}
