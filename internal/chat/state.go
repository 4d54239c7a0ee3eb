package chat

import "fmt"

// State is the messaging session lifecycle position.
type State int

const (
	Disconnected State = iota
	Connected           // live connection, no room joined
	Joined              // live connection, joined to one room
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Joined:
		return "joined"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Input is a lifecycle signal fed to the transition function.
type Input int

const (
	InputConnect Input = iota
	InputJoin
	InputLeave
	InputDisconnect
)

func (in Input) String() string {
	switch in {
	case InputConnect:
		return "connect"
	case InputJoin:
		return "join"
	case InputLeave:
		return "leave"
	case InputDisconnect:
		return "disconnect"
	default:
		return fmt.Sprintf("input(%d)", int(in))
	}
}

// Transition returns the state after in. Joining while already joined is
// legal: it models switching rooms, which leaves the old room first. Every
// state may disconnect.
func Transition(from State, in Input) (State, error) {
	switch in {
	case InputConnect:
		if from == Disconnected {
			return Connected, nil
		}
	case InputJoin:
		if from == Connected || from == Joined {
			return Joined, nil
		}
	case InputLeave:
		if from == Joined {
			return Connected, nil
		}
	case InputDisconnect:
		return Disconnected, nil
	}
	return from, fmt.Errorf("chat: illegal transition %s on %s", in, from)
}
