// cmd/boardtest/main.go
//go:build rp2040 || rp2350

// boardtest is a bring-up sweep for the servo rig. It drives the servo pin
// directly through the mapped angles and mirrors its log to uart0, so the
// wiring can be checked before the full firmware is flashed.
package main

import (
	"fmt"
	"machine"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers/servo"

	svc "servocontrol-go/services/servo"
	"servocontrol-go/types"
)

// ---------- Configuration ----------

const (
	servoPin = machine.Pin(2)
	ledPin   = machine.LED
	baud     = 9_600

	// Sequencing timing
	stepDelayUp   = 300 * time.Millisecond
	stepDelayDown = 300 * time.Millisecond
	dwellUp       = 2 * time.Second
	dwellDown     = 2 * time.Second

	// Cycles: 0 = loop forever
	cyclesToRun = 0
)

// Angles visited on the way up; the way down reverses them.
var sweep = []uint8{0, 30, 60, 90, 91, 120, 150, 180}

// ---------- Minimal output to console + uart0 ----------

type out struct {
	u *uartx.UART
}

func (o *out) println(a ...any) {
	line := fmt.Sprintln(a...)
	print(line)
	if o.u != nil {
		_, _ = o.u.Write([]byte(line))
	}
}

// ---------- Helpers ----------

func pwmGroup(slice uint8) servo.PWM {
	switch slice {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

func openServo(pin machine.Pin) (servo.Servo, error) {
	slice, err := machine.PWMPeripheral(pin)
	if err != nil {
		return servo.Servo{}, err
	}
	return servo.New(pwmGroup(slice), pin)
}

func ledFlashPassFail(pass bool) {
	if pass {
		// Double short
		for i := 0; i < 2; i++ {
			ledPin.High()
			time.Sleep(120 * time.Millisecond)
			ledPin.Low()
			time.Sleep(200 * time.Millisecond)
		}
	} else {
		// Single long
		ledPin.High()
		time.Sleep(400 * time.Millisecond)
		ledPin.Low()
		time.Sleep(200 * time.Millisecond)
	}
}

func move(o *out, s servo.Servo, m *svc.Mapper, angle uint8) {
	d := m.Duty(angle)
	s.SetMicroseconds(int16(d))
	o.println("angle:", angle, "duty:", d)
}

// ---------- Main ----------

func main() {
	time.Sleep(1500 * time.Millisecond)
	ledPin.Configure(machine.PinConfig{Mode: machine.PinOutput})

	var o out
	if err := uartx.UART0.Configure(uartx.UARTConfig{BaudRate: baud, TX: machine.UART0_TX_PIN, RX: machine.UART0_RX_PIN}); err == nil {
		o.u = uartx.UART0
	}

	m, err := svc.NewMapper(types.DefaultServoConfig().Calibration)
	if err != nil {
		o.println("[FAIL] calibration:", err.Error())
		ledFlashPassFail(false)
		return
	}
	s, err := openServo(servoPin)
	if err != nil {
		o.println("[FAIL] servo pin:", err.Error())
		ledFlashPassFail(false)
		return
	}

	cycle := 0
	for {
		cycle++
		o.println("=== boardtest: cycle ", cycle, " ===")

		for _, a := range sweep {
			move(&o, s, m, a)
			time.Sleep(stepDelayUp)
		}
		time.Sleep(dwellUp)

		for i := len(sweep) - 1; i >= 0; i-- {
			move(&o, s, m, sweep[i])
			time.Sleep(stepDelayDown)
		}
		time.Sleep(dwellDown)

		o.println("[PASS] sweep complete")
		ledFlashPassFail(true)

		if cyclesToRun > 0 && cycle >= cyclesToRun {
			o.println("completed ", cycle, " cycles; halting")
			return
		}
	}
}
