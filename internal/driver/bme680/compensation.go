package bme680

import "math"

var (
	gasRangeK1 = [16]float64{0, 0, 0, 0, 0, -1, 0, -0.8, 0, 0, -0.2, -0.5, 0, -1, 0, 0}
	gasRangeK2 = [16]float64{0, 0, 0, 0, 0.1, 0.7, 0, -0.8, -0.1, 0, 0, 0, 0, 0, 0, 0}
)

// calibration holds the factory trimming parameters (Bosch naming).
type calibration struct {
	t1 uint16
	t2 int16
	t3 int8

	p1  uint16
	p2  int16
	p3  int8
	p4  int16
	p5  int16
	p6  int8
	p7  int8
	p8  int16
	p9  int16
	p10 uint8

	h1 uint16
	h2 uint16
	h3 int8
	h4 int8
	h5 int8
	h6 uint8
	h7 int8

	gh1 int8
	gh2 int16
	gh3 int8

	resHeatRange uint8
	resHeatVal   int8
	rangeSwErr   int8
}

// parseCalibration decodes the 41 concatenated coefficient bytes
// (0x89..0xA1 followed by 0xE1..0xF0).
func parseCalibration(b []byte, heatRange, heatVal, swErr byte) calibration {
	u16 := func(lsb, msb int) uint16 { return uint16(b[msb])<<8 | uint16(b[lsb]) }

	return calibration{
		t1: u16(33, 34),
		t2: int16(u16(1, 2)),
		t3: int8(b[3]),

		p1:  u16(5, 6),
		p2:  int16(u16(7, 8)),
		p3:  int8(b[9]),
		p4:  int16(u16(11, 12)),
		p5:  int16(u16(13, 14)),
		p6:  int8(b[16]),
		p7:  int8(b[15]),
		p8:  int16(u16(19, 20)),
		p9:  int16(u16(21, 22)),
		p10: b[23],

		h1: uint16(b[27])<<4 | uint16(b[26]&0x0F),
		h2: uint16(b[25])<<4 | uint16(b[26]>>4),
		h3: int8(b[28]),
		h4: int8(b[29]),
		h5: int8(b[30]),
		h6: b[31],
		h7: int8(b[32]),

		gh1: int8(b[37]),
		gh2: int16(u16(35, 36)),
		gh3: int8(b[38]),

		resHeatRange: (heatRange & 0x30) >> 4,
		resHeatVal:   int8(heatVal),
		rangeSwErr:   int8(swErr) >> 4,
	}
}

func (c calibration) compensate(field []byte) Sample {
	presADC := uint32(field[2])<<12 | uint32(field[3])<<4 | uint32(field[4])>>4
	tempADC := uint32(field[5])<<12 | uint32(field[6])<<4 | uint32(field[7])>>4
	humADC := uint16(field[8])<<8 | uint16(field[9])
	gasADC := uint16(field[13])<<2 | uint16(field[14])>>6
	gasRange := field[14] & gasRangeMask

	temp, tFine := c.temperature(tempADC)
	return Sample{
		Temperature:   temp,
		Pressure:      c.pressure(presADC, tFine) / 100,
		Humidity:      c.humidity(humADC, temp),
		GasResistance: c.gasResistance(gasADC, gasRange),
		GasValid:      field[14]&gasValid != 0 && field[14]&heatStable != 0,
	}
}

func (c calibration) temperature(adc uint32) (float64, float64) {
	a := float64(adc)
	t1 := float64(c.t1)
	var1 := (a/16384 - t1/1024) * float64(c.t2)
	var2 := (a/131072 - t1/8192) * (a/131072 - t1/8192) * float64(c.t3) * 16
	tFine := var1 + var2
	return tFine / 5120, tFine
}

// pressure returns Pa.
func (c calibration) pressure(adc uint32, tFine float64) float64 {
	var1 := tFine/2 - 64000
	var2 := var1 * var1 * (float64(c.p6) / 131072)
	var2 += var1 * float64(c.p5) * 2
	var2 = var2/4 + float64(c.p4)*65536
	var1 = (float64(c.p3)*var1*var1/16384 + float64(c.p2)*var1) / 524288
	var1 = (1 + var1/32768) * float64(c.p1)
	if var1 == 0 {
		return 0
	}

	p := 1048576 - float64(adc)
	p = (p - var2/4096) * 6250 / var1
	var1 = float64(c.p9) * p * p / 2147483648
	var2 = p * (float64(c.p8) / 32768)
	var3 := (p / 256) * (p / 256) * (p / 256) * (float64(c.p10) / 131072)
	return p + (var1+var2+var3+float64(c.p7)*128)/16
}

func (c calibration) humidity(adc uint16, temp float64) float64 {
	var1 := float64(adc) - (float64(c.h1)*16 + float64(c.h3)/2*temp)
	var2 := var1 * (float64(c.h2) / 262144 * (1 + float64(c.h4)/16384*temp + float64(c.h5)/1048576*temp*temp))
	var3 := float64(c.h6) / 16384
	var4 := float64(c.h7) / 2097152
	h := var2 + (var3+var4*temp)*var2*var2
	return math.Min(math.Max(h, 0), 100)
}

// gasResistance returns Ω.
func (c calibration) gasResistance(adc uint16, gasRange uint8) float64 {
	var1 := 1340 + 5*float64(c.rangeSwErr)
	var2 := var1 * (1 + gasRangeK1[gasRange]/100)
	var3 := 1 + gasRangeK2[gasRange]/100
	return 1 / (var3 * 0.000000125 * float64(uint32(1)<<gasRange) * ((float64(adc)-512)/var2 + 1))
}

// heaterResistance converts a target heater temperature into the res_heat register value.
func (c calibration) heaterResistance(target, ambient float64) byte {
	if target > 400 {
		target = 400
	}
	var1 := float64(c.gh1)/16 + 49
	var2 := float64(c.gh2)/32768*0.0005 + 0.00235
	var3 := float64(c.gh3) / 1024
	var4 := var1 * (1 + var2*target)
	var5 := var4 + var3*ambient
	res := 3.4*(var5*(4/(4+float64(c.resHeatRange)))*(1/(1+float64(c.resHeatVal)*0.002))) - 25
	return byte(math.Min(math.Max(res, 0), 255))
}
