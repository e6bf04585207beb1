//go:build pico && pico_scope_probe

package setups

// Bench setup: status link on uart1 and every observability line broken out
// to header pins for a logic analyser.
func init() {
	SelectedPlan = ResourcePlan{
		UART:      UARTPlan{ID: "uart1", TX: 4, RX: 5, Baud: 9_600},
		PWMPin:    2,
		TickLine:  16,
		TxLine:    17,
		AllocLine: 18,
	}
}
