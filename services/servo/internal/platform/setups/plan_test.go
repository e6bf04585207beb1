package setups

import "testing"

func TestSelectedPlanIsUsable(t *testing.T) {
	p := SelectedPlan
	if p.UART.ID != "uart0" && p.UART.ID != "uart1" {
		t.Fatalf("uart id %q", p.UART.ID)
	}
	if p.UART.Baud == 0 || p.PWMPin < 0 || p.TickLine == Unassigned {
		t.Fatalf("incomplete plan: %+v", p)
	}
	pins := map[int]string{}
	for name, pin := range map[string]int{
		"tx": p.UART.TX, "rx": p.UART.RX, "pwm": p.PWMPin,
		"tick": p.TickLine, "txline": p.TxLine, "alloc": p.AllocLine,
	} {
		if pin == Unassigned {
			continue
		}
		if other, dup := pins[pin]; dup {
			t.Fatalf("pin %d used by %s and %s", pin, other, name)
		}
		pins[pin] = name
	}
}
