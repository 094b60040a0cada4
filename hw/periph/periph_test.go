package periph

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

func TestBusSendReceive(t *testing.T) {
	frame := []byte{0x1c, 0x00, 0x00, 0x80}
	reply := make([]byte, 132)
	reply[6] = 0x08

	pb := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x42, W: frame},
			{Addr: 0x42, R: reply},
		},
	}
	bus := NewBus(pb)

	if err := bus.Send(0x42, frame); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	got, err := bus.Receive(0x42, 132)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if !bytes.Equal(got, reply) {
		t.Errorf("Receive() = %X, want %X", got, reply)
	}
	if err := pb.Close(); err != nil {
		t.Errorf("playback not drained: %v", err)
	}
	if err := bus.SetSpeed(400 * physic.KiloHertz); err != nil {
		t.Errorf("SetSpeed() error = %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("Close() of wrapped bus error = %v", err)
	}
}

func TestBusErrorsWrapped(t *testing.T) {
	pb := &i2ctest.Playback{DontPanic: true}
	bus := NewBus(pb)

	if err := bus.Send(0x42, []byte{1}); err == nil {
		t.Error("Send() on empty playback should fail")
	}
	if _, err := bus.Receive(0x42, 132); err == nil {
		t.Error("Receive() on empty playback should fail")
	}
}

func TestReadyPinClaimRelease(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO27", Num: 27}
	r := NewReadyPin(pin, 0)

	if err := r.Claim(); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if pin.Read() != gpio.Low {
		t.Error("Claim() should drive the line low")
	}

	if err := r.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if pin.Pull() != gpio.PullUp {
		t.Errorf("pull = %v, want %v", pin.Pull(), gpio.PullUp)
	}
	if pin.Read() != gpio.High {
		t.Error("Release() should leave the line pulled high")
	}
}

func TestReadyPinWaitAsserted(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO27", Num: 27}
	r := NewReadyPin(pin, time.Millisecond)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = pin.Out(gpio.Low)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.WaitAsserted(ctx); err != nil {
		t.Fatalf("WaitAsserted() error = %v", err)
	}
}

func TestReadyPinWaitTimeout(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO27", Num: 27}
	r := NewReadyPin(pin, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := r.WaitAsserted(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitAsserted() error = %v, want deadline exceeded", err)
	}
}

func TestResetPin(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO17", Num: 17, L: gpio.High}
	r := NewResetPin(pin)

	if err := r.AssertReset(); err != nil {
		t.Fatal(err)
	}
	if pin.Read() != gpio.Low {
		t.Error("AssertReset() should drive reset low")
	}
	if err := r.ReleaseReset(); err != nil {
		t.Fatal(err)
	}
	if pin.Read() != gpio.High {
		t.Error("ReleaseReset() should drive reset high")
	}
}
