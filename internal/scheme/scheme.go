// Package scheme holds the keyboard control scheme: ordered tables
// mapping key chords to core window-management actions, menu actions,
// and free-form IPC commands. Schemes load from a fixed binary file and
// fall back to built-in defaults when the file is rejected.
package scheme

import (
	"sort"
)

// Keysym values of interest (X11 keysym encoding; latin letters are
// their ASCII value).
const (
	KeySuperL   uint32 = 0xffeb
	KeySuperR   uint32 = 0xffec
	KeyAltL     uint32 = 0xffe9
	KeyAltR     uint32 = 0xffea
	KeyMenu     uint32 = 0xff67
	KeyReturn   uint32 = 0xff0d
	KeyTab      uint32 = 0xff09
	KeyEscape   uint32 = 0xff1b
	KeyUp       uint32 = 0xff52
	KeyDown     uint32 = 0xff54
	KeyLeft     uint32 = 0xff51
	KeyRight    uint32 = 0xff53
	KeyPageUp   uint32 = 0xff55
	KeyPageDown uint32 = 0xff56
	KeySpace    uint32 = 0x20
)

// leaderTable lists the keysyms selectable as leader, by index.
var leaderTable = [5]uint32{KeySuperL, KeySuperR, KeyAltL, KeyAltR, KeyMenu}

// Chord is up to five simultaneously held keysyms, zero-padded. A zero
// first keysym in a stored scheme stands for the leader and is replaced
// at load time.
type Chord [5]uint32

// Compare orders chords lexicographically.
func (c Chord) Compare(o Chord) int {
	for i := range c {
		if c[i] != o[i] {
			if c[i] < o[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// CoreAction is a window-management operation bound to a chord.
type CoreAction uint8

const (
	CoreSpawnTerminal CoreAction = iota
	CoreFocusNext
	CoreFocusPrev
	CoreToggleMaximized
	CoreToggleFullscreen
	CoreCloseSurface
	CoreWorkspaceAdd
	CoreWorkspaceNext
	CoreWorkspacePrev
	CoreScreenLock
	CoreSwitchKeyboardLayout
	CoreMoveMode
	CoreResizeMode
	coreActionCount
)

var coreActionNames = [...]string{
	"spawn-terminal", "focus-next", "focus-prev", "toggle-maximized",
	"toggle-fullscreen", "close-surface", "workspace-add",
	"workspace-next", "workspace-prev", "screen-lock",
	"switch-keyboard-layout", "move-mode", "resize-mode",
}

func (a CoreAction) String() string {
	if int(a) < len(coreActionNames) {
		return coreActionNames[a]
	}
	return "core(?)"
}

// MenuAction drives the output menu; matched only while the menu is
// relevant (show always, the rest while visible).
type MenuAction uint8

const (
	MenuShow MenuAction = iota
	MenuCancel
	MenuLineUp
	MenuLineDown
	MenuSelect
	menuActionCount
)

var menuActionNames = [...]string{
	"menu-show", "menu-cancel", "menu-line-up", "menu-line-down", "menu-select",
}

func (a MenuAction) String() string {
	if int(a) < len(menuActionNames) {
		return menuActionNames[a]
	}
	return "menu(?)"
}

const (
	// CoreActionCount and MenuActionCount bound the table sizes a scheme
	// file may carry: at least one binding per action, at most two.
	CoreActionCount = int(coreActionCount)
	MenuActionCount = int(menuActionCount)

	// MaxIPCActions bounds the IPC binding table.
	MaxIPCActions = 24

	// IPCCommandLen is the fixed size of a bound IPC command blob.
	IPCCommandLen = 64
)

type CoreBinding struct {
	Chord  Chord
	Action CoreAction
}

type MenuBinding struct {
	Chord  Chord
	Action MenuAction
}

type IPCBinding struct {
	Chord   Chord
	Command [IPCCommandLen]byte
}

// Scheme is a validated control scheme: all three tables sorted by
// chord, duplicate-free, with core and menu covering every action.
type Scheme struct {
	LeaderIndex uint8
	Core        []CoreBinding
	Menu        []MenuBinding
	IPC         []IPCBinding
}

// Leader returns the leader keysym selected by LeaderIndex.
func (s *Scheme) Leader() uint32 {
	return leaderTable[s.LeaderIndex%uint8(len(leaderTable))]
}

// LeaderName returns a display name for a leader index.
func LeaderName(index uint8) string {
	names := [...]string{"Super-L", "Super-R", "Alt-L", "Alt-R", "Menu"}
	return names[index%uint8(len(names))]
}

// LookupCore finds the action bound to the chord.
func (s *Scheme) LookupCore(c Chord) (CoreAction, bool) {
	i := sort.Search(len(s.Core), func(i int) bool {
		return s.Core[i].Chord.Compare(c) >= 0
	})
	if i < len(s.Core) && s.Core[i].Chord == c {
		return s.Core[i].Action, true
	}
	return 0, false
}

// LookupMenu finds the menu action bound to the chord.
func (s *Scheme) LookupMenu(c Chord) (MenuAction, bool) {
	i := sort.Search(len(s.Menu), func(i int) bool {
		return s.Menu[i].Chord.Compare(c) >= 0
	})
	if i < len(s.Menu) && s.Menu[i].Chord == c {
		return s.Menu[i].Action, true
	}
	return 0, false
}

// LookupIPC finds the command blob bound to the chord.
func (s *Scheme) LookupIPC(c Chord) ([IPCCommandLen]byte, bool) {
	i := sort.Search(len(s.IPC), func(i int) bool {
		return s.IPC[i].Chord.Compare(c) >= 0
	})
	if i < len(s.IPC) && s.IPC[i].Chord == c {
		return s.IPC[i].Command, true
	}
	return [IPCCommandLen]byte{}, false
}

// normalize substitutes the leader into chords whose first keysym is
// zero, sorts the tables, and validates counts, duplicates, and action
// coverage.
func (s *Scheme) normalize() error {
	if int(s.LeaderIndex) >= len(leaderTable) {
		return ErrBadLeader
	}
	if len(s.Core) < CoreActionCount || len(s.Core) > 2*CoreActionCount {
		return ErrBadCounts
	}
	if len(s.Menu) < MenuActionCount || len(s.Menu) > 2*MenuActionCount {
		return ErrBadCounts
	}
	if len(s.IPC) > MaxIPCActions {
		return ErrBadCounts
	}

	leader := s.Leader()
	for i := range s.Core {
		if s.Core[i].Chord[0] == 0 {
			s.Core[i].Chord[0] = leader
		}
		if s.Core[i].Action >= coreActionCount {
			return ErrBadAction
		}
	}
	for i := range s.Menu {
		if s.Menu[i].Chord[0] == 0 {
			s.Menu[i].Chord[0] = leader
		}
		if s.Menu[i].Action >= menuActionCount {
			return ErrBadAction
		}
	}
	for i := range s.IPC {
		if s.IPC[i].Chord[0] == 0 {
			s.IPC[i].Chord[0] = leader
		}
	}

	sort.Slice(s.Core, func(i, j int) bool { return s.Core[i].Chord.Compare(s.Core[j].Chord) < 0 })
	sort.Slice(s.Menu, func(i, j int) bool { return s.Menu[i].Chord.Compare(s.Menu[j].Chord) < 0 })
	sort.Slice(s.IPC, func(i, j int) bool { return s.IPC[i].Chord.Compare(s.IPC[j].Chord) < 0 })

	for i := 1; i < len(s.Core); i++ {
		if s.Core[i].Chord == s.Core[i-1].Chord {
			return ErrDuplicateChord
		}
	}
	for i := 1; i < len(s.Menu); i++ {
		if s.Menu[i].Chord == s.Menu[i-1].Chord {
			return ErrDuplicateChord
		}
	}
	for i := 1; i < len(s.IPC); i++ {
		if s.IPC[i].Chord == s.IPC[i-1].Chord {
			return ErrDuplicateChord
		}
	}

	var coreSeen [coreActionCount]bool
	for _, b := range s.Core {
		coreSeen[b.Action] = true
	}
	for _, seen := range coreSeen {
		if !seen {
			return ErrCoverage
		}
	}
	var menuSeen [menuActionCount]bool
	for _, b := range s.Menu {
		menuSeen[b.Action] = true
	}
	for _, seen := range menuSeen {
		if !seen {
			return ErrCoverage
		}
	}
	return nil
}

// Default returns the built-in scheme with Super-L as leader.
func Default() *Scheme {
	s := &Scheme{
		LeaderIndex: 0,
		Core: []CoreBinding{
			{Chord{0, KeyReturn}, CoreSpawnTerminal},
			{Chord{0, KeyRight}, CoreFocusNext},
			{Chord{0, KeyLeft}, CoreFocusPrev},
			{Chord{0, KeyUp}, CoreToggleMaximized},
			{Chord{0, 'f'}, CoreToggleFullscreen},
			{Chord{0, 'q'}, CoreCloseSurface},
			{Chord{0, 'n'}, CoreWorkspaceAdd},
			{Chord{0, KeyPageDown}, CoreWorkspaceNext},
			{Chord{0, KeyPageUp}, CoreWorkspacePrev},
			{Chord{0, 'l'}, CoreScreenLock},
			{Chord{0, KeySpace}, CoreSwitchKeyboardLayout},
			{Chord{0, 'v'}, CoreMoveMode},
			{Chord{0, 'r'}, CoreResizeMode},
		},
		Menu: []MenuBinding{
			{Chord{0, KeyTab}, MenuShow},
			{Chord{KeyEscape}, MenuCancel},
			{Chord{KeyUp}, MenuLineUp},
			{Chord{KeyDown}, MenuLineDown},
			{Chord{KeyReturn}, MenuSelect},
		},
	}
	if err := s.normalize(); err != nil {
		panic("scheme: invalid built-in defaults: " + err.Error())
	}
	return s
}
