// headctl - bring-up check for a pan-tilt head controller
//
// Connects to the control board, reads every encoder, then nudges each
// joint in position mode and reports whether it moved.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/pkg/robot"
)

func main() {
	addr := flag.String("head", config.HeadAddr("localhost"), "Head controller: host[:port], URL or serial:/dev/ttyX")
	nudge := flag.Float64("nudge", 5, "Test move in degrees (0 skips the motion test)")
	settle := flag.Duration("settle", 500*time.Millisecond, "Wait after each move")
	flag.Parse()

	fmt.Println("🤖 Head controller check")
	fmt.Println("========================")
	fmt.Printf("Head: %s\n\n", *addr)

	// Step 1: Connect
	fmt.Print("1. Connecting... ")
	head, err := connect(*addr)
	if err != nil {
		fmt.Printf("❌ Failed: %v\n", err)
		os.Exit(1)
	}
	defer head.Close()
	fmt.Println("✅ Connected")

	// Step 2: Read encoders
	fmt.Print("\n2. Reading encoders... ")
	enc, err := head.ReadEncoders()
	if err != nil {
		fmt.Printf("❌ Failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅")
	printEncoders(enc)

	if *nudge == 0 {
		return
	}

	// Step 3: Position mode on every joint
	fmt.Print("\n3. Switching to position mode... ")
	for _, j := range robot.Joints {
		if err := head.SetControlMode(j, robot.ModePosition); err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Println("✅")

	// Step 4: Nudge each joint and come back
	fmt.Println("\n4. Nudging joints...")
	failed := 0
	for _, j := range robot.Joints {
		start, err := head.Encoder(j)
		if err != nil {
			fmt.Printf("   %-10s ❌ read: %v\n", j, err)
			failed++
			continue
		}
		if err := head.PositionMove(j, start+*nudge); err != nil {
			fmt.Printf("   %-10s ❌ move: %v\n", j, err)
			failed++
			continue
		}
		time.Sleep(*settle)
		moved, _ := head.Encoder(j)
		head.PositionMove(j, start)
		time.Sleep(*settle)

		delta := moved - start
		if math.Abs(delta-*nudge) > math.Abs(*nudge)/2 {
			fmt.Printf("   %-10s ⚠️  moved %.2f°, expected %.2f°\n", j, delta, *nudge)
			failed++
			continue
		}
		fmt.Printf("   %-10s ✅ moved %.2f°\n", j, delta)
	}

	if failed > 0 {
		fmt.Printf("\n❌ %d joint(s) failed\n", failed)
		os.Exit(1)
	}
	fmt.Println("\n✅ All joints respond")
}

func connect(addr string) (*robot.Head, error) {
	var driver robot.Driver
	if path, ok := config.SerialPath(addr); ok {
		sc, err := robot.OpenSerial(path, robot.PortOptions{})
		if err != nil {
			return nil, err
		}
		driver = sc
	} else {
		hc, err := robot.DialHTTP(config.HeadAPIURL(addr))
		if err != nil {
			return nil, err
		}
		driver = hc
	}
	return robot.Attach(driver)
}

func printEncoders(e robot.Encoders) {
	fmt.Printf("   neck_pitch %7.2f°   neck_yaw %7.2f°\n", e.NeckPitch, e.NeckYaw)
	fmt.Printf("   eye_tilt   %7.2f°   eye_yaw  %7.2f°\n", e.EyeTilt, e.EyeYaw)
}
