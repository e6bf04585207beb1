package setups

// ResourcePlan specifies wiring and operating parameters chosen by a setup.
// Providers consume this plan to instantiate the board collaborators.
type ResourcePlan struct {
	UART   UARTPlan
	PWMPin int // servo signal

	// Observability lines; -1 leaves a line unassigned.
	TickLine  int // toggled on every periodic tick
	TxLine    int // high while a status line is being transmitted
	AllocLine int // toggled on every failed message allocation
}

type UARTPlan struct {
	ID   string // e.g. "uart0"
	TX   int    // GPIO number
	RX   int    // GPIO number
	Baud uint32 // fixed for the process lifetime
}

// Unassigned marks a signal line the board does not drive.
const Unassigned = -1

// SelectedPlan is the plan used by servo.Run. Setup files override it.
var SelectedPlan = PicoDefault

// PicoDefault wires the servo to a bare Raspberry Pi Pico.
var PicoDefault = ResourcePlan{
	UART:      UARTPlan{ID: "uart0", TX: 0, RX: 1, Baud: 9_600},
	PWMPin:    2,
	TickLine:  25, // on-board LED
	TxLine:    Unassigned,
	AllocLine: 15,
}
