// gen-session produces synthetic capture files for exercising the analyzer
// without hardware attached: a 60 Hz IMU bundle and a 1000 Hz force-platform
// bundle with waveforms shaped after the requested exercise. An artificial
// clock offset and left/right asymmetry can be injected to verify that the
// pipeline recovers them.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/stridelabs/kneemetry/internal/biomech/pipeline"
	"github.com/stridelabs/kneemetry/internal/biomech/series"
	"github.com/stridelabs/kneemetry/internal/sessionfile"
)

const gravity = 9.81

func main() {
	var (
		outPath   string
		exercise  string
		duration  float64
		massKg    float64
		imuRate   float64
		forceRate float64
		offsetS   float64
		asymPct   float64
		noise     float64
		seed      int64
	)
	flag.StringVar(&outPath, "out", "session.json", "output session file")
	flag.StringVar(&exercise, "exercise", "walk", "exercise type: walk, squat or jump")
	flag.Float64Var(&duration, "duration", 10, "capture duration in seconds")
	flag.Float64Var(&massKg, "mass", 75, "subject body mass in kg")
	flag.Float64Var(&imuRate, "imu-rate", 60, "IMU sampling rate in Hz")
	flag.Float64Var(&forceRate, "force-rate", 1000, "force platform sampling rate in Hz")
	flag.Float64Var(&offsetS, "offset", 0, "clock offset injected into the IMU stream, in seconds")
	flag.Float64Var(&asymPct, "asymmetry", 0, "left-side deficit in percent (0 = symmetric)")
	flag.Float64Var(&noise, "noise", 0.01, "relative noise amplitude added to every channel")
	flag.Int64Var(&seed, "seed", 1, "random seed for the noise generator")
	flag.Parse()

	if duration <= 0 || massKg <= 0 || imuRate <= 0 || forceRate <= 0 {
		log.Fatalf("duration, mass and rates must be positive")
	}
	shape, ok := shapes[exercise]
	if !ok {
		log.Fatalf("unknown exercise %q (want walk, squat or jump)", exercise)
	}

	rng := rand.New(rand.NewSource(seed))
	s := pipeline.Session{
		ID:         uuid.NewString(),
		Exercise:   exercise,
		MassKg:     massKg,
		CapturedAt: time.Now().UTC(),
		IMU:        genIMU(shape, imuRate, duration, offsetS, asymPct, noise, rng),
		Force:      genForce(shape, forceRate, duration, massKg, noise, rng),
	}
	if err := sessionfile.Save(outPath, s); err != nil {
		log.Fatalf("save: %v", err)
	}
	fmt.Printf("wrote %s: %s session %s, %.1f s, imu %d samples @ %.0f Hz, force %d samples @ %.0f Hz\n",
		outPath, exercise, s.ID, duration,
		len(s.IMU.Time), imuRate, len(s.Force.Time), forceRate)
	if offsetS != 0 {
		fmt.Printf("injected clock offset: %+.3f s\n", offsetS)
	}
}

// shape describes one exercise as a knee angular-velocity profile in deg/s
// and a vertical force profile as a multiple of body weight.
type shape struct {
	kneeVelDegS func(t float64) float64
	forceBW     func(t float64) float64
}

var shapes = map[string]shape{
	// Gait at 1 Hz: roughly 60 degrees of knee flexion per cycle, stance
	// pulses peaking around 1.2 BW with a short unloaded swing phase.
	"walk": {
		kneeVelDegS: func(t float64) float64 { return 60 * math.Pi * math.Sin(2*math.Pi*t) },
		forceBW: func(t float64) float64 {
			p := math.Sin(2 * math.Pi * t)
			if p <= 0 {
				return 0.02
			}
			return 1.2 * p
		},
	},
	// Slow squats at 0.5 Hz: 90 degrees of flexion, force stays near body
	// weight with a mild modulation from the descent and ascent.
	"squat": {
		kneeVelDegS: func(t float64) float64 { return 45 * math.Pi * math.Sin(math.Pi*t) },
		forceBW: func(t float64) float64 {
			return 1 + 0.25*math.Sin(2*math.Pi*0.5*t)
		},
	},
	// A single countermovement jump two seconds in: push-off near 2.2 BW,
	// a 0.4 s flight at zero load, then a landing spike.
	"jump": {
		kneeVelDegS: func(t float64) float64 {
			base := 40 * math.Pi * math.Sin(math.Pi*t)
			if t >= 2.0 && t < 2.3 {
				base += 400 * math.Sin(math.Pi*(t-2.0)/0.3)
			}
			return base
		},
		forceBW: func(t float64) float64 {
			switch {
			case t >= 2.0 && t < 2.3: // push-off
				return 1 + 1.2*math.Sin(math.Pi*(t-2.0)/0.3)
			case t >= 2.3 && t < 2.7: // flight
				return 0.01
			case t >= 2.7 && t < 2.9: // landing
				return 1 + 1.8*math.Sin(math.Pi*(t-2.7)/0.2)
			default:
				return 1
			}
		},
	},
}

func genIMU(sh shape, rate, duration, offsetS, asymPct, noise float64, rng *rand.Rand) *series.Bundle {
	n := int(duration * rate)
	b := &series.Bundle{
		Rate:     rate,
		Time:     make([]float64, n),
		Channels: make(map[string][]float64),
	}
	leftScale := 1 - asymPct/100
	for _, ch := range []string{
		"femur_right_gyro_y", "tibia_right_gyro_y",
		"femur_left_gyro_y", "tibia_left_gyro_y",
		"femur_right_accel_z", "femur_left_accel_z",
		"tibia_right_accel_z", "tibia_left_accel_z",
	} {
		b.Channels[ch] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		// The platform clock is the reference; a positive offset means the
		// IMU clock runs ahead of it.
		t := float64(i) / rate
		b.Time[i] = t + offsetS
		vel := sh.kneeVelDegS(t)
		// Vertical acceleration shares the loading signature so that
		// cross-correlation against the platform has something to lock onto.
		accel := gravity + 2*(sh.forceBW(t)-1)
		b.Channels["femur_right_gyro_y"][i] = vel + jitter(rng, noise*math.Abs(vel)+0.1)
		b.Channels["tibia_right_gyro_y"][i] = jitter(rng, 0.5)
		b.Channels["femur_left_gyro_y"][i] = vel*leftScale + jitter(rng, noise*math.Abs(vel)+0.1)
		b.Channels["tibia_left_gyro_y"][i] = jitter(rng, 0.5)
		for _, ch := range []string{
			"femur_right_accel_z", "femur_left_accel_z",
			"tibia_right_accel_z", "tibia_left_accel_z",
		} {
			b.Channels[ch][i] = accel + jitter(rng, noise*gravity)
		}
	}
	return b
}

func genForce(sh shape, rate, duration, massKg, noise float64, rng *rand.Rand) *series.Bundle {
	n := int(duration * rate)
	bw := massKg * gravity
	b := &series.Bundle{
		Rate: rate,
		Time: make([]float64, n),
		Channels: map[string][]float64{
			"fz": make([]float64, n),
			"fx": make([]float64, n),
			"fy": make([]float64, n),
		},
	}
	for i := 0; i < n; i++ {
		t := float64(i) / rate
		b.Time[i] = t
		b.Channels["fz"][i] = bw*sh.forceBW(t) + jitter(rng, noise*bw)
		b.Channels["fx"][i] = jitter(rng, 0.05*bw)
		b.Channels["fy"][i] = jitter(rng, 0.05*bw)
	}
	return b
}

func jitter(rng *rand.Rand, amplitude float64) float64 {
	return (rng.Float64()*2 - 1) * amplitude
}
