//go:build !(rp2040 || rp2350)

// servo-demo runs the servo service on the host simulator and plays a short
// command script into its receive line. Transmitted status lines go to
// stdout; the final duty history is printed at the end.
package main

import (
	"context"
	"os"
	"time"

	"servocontrol-go/services/servo"
	"servocontrol-go/services/servo/internal/platform"
	"servocontrol-go/types"
)

var script = []string{"0\n", "45\n", "90\n", "135\r", "1999\n", "abc12\n"}

func main() {
	cfg := types.DefaultServoConfig()
	cfg.Calibration.Mode = types.CalibrationShort
	cfg.Calibration.SettleMs = 50

	hb := platform.NewHostBoard(cfg, os.Stdout)
	defer hb.Close()

	s, err := servo.New(cfg, &hb.Board)
	if err != nil {
		println("[main] new:", err.Error())
		os.Exit(1)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		println("[main] start:", err.Error())
		os.Exit(1)
	}
	go func() { _ = s.Run(ctx) }()

	for _, cmd := range script {
		hb.UART.Inject([]byte(cmd))
		time.Sleep(time.Duration(cfg.TickIntervalMs) * 2 * time.Millisecond)
	}
	cancel()

	println("[main] duty history:")
	for _, d := range hb.Servo.History() {
		println("  ", d)
	}
	st := s.Parser().Stats()
	println("[main] commits", st.Commits, "overflows", st.Overflows, "ignored", st.Ignored)
}
