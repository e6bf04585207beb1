package main

import (
	"context"
	"time"

	"servocontrol-go/services/servo"
	"servocontrol-go/types"
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("boot")

	cfg := types.DefaultServoConfig()
	if err := servo.Run(context.Background(), cfg); err != nil {
		println("[main] servo stopped:", err.Error())
	}

	// Nothing left to drive; park and let the watchdog decide.
	select {}
}
