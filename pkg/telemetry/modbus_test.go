package telemetry

import (
	"encoding/binary"
	"io"
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeWatts(t *testing.T) {
	f := make([]byte, 4)
	binary.BigEndian.PutUint32(f, math.Float32bits(80.5))

	cases := []struct {
		name string
		cfg  ModbusConfig
		raw  []byte
		want float64
	}{
		{"uint16 scaled", ModbusConfig{Format: "uint16", Scale: 0.1}, []byte{0x01, 0xF4}, 50},
		{"uint32", ModbusConfig{Format: "uint32", Scale: 1}, []byte{0x00, 0x01, 0x00, 0x00}, 65536},
		{"uint32 word swap", ModbusConfig{Format: "uint32", Scale: 1, WordSwap: true}, []byte{0x00, 0x00, 0x00, 0x01}, 65536},
		{"int32 negative", ModbusConfig{Format: "int32", Scale: 1}, []byte{0xFF, 0xFF, 0xFF, 0xFE}, -2},
		{"float32", ModbusConfig{Format: "float32", Scale: 1}, f, 80.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.cfg.decodeWatts(tc.raw)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}

	_, err := ModbusConfig{Format: "uint32", Scale: 1}.decodeWatts([]byte{0x00})
	assert.Error(t, err)

	nan := make([]byte, 4)
	binary.BigEndian.PutUint32(nan, math.Float32bits(float32(math.NaN())))
	_, err = ModbusConfig{Format: "float32", Scale: 1}.decodeWatts(nan)
	assert.Error(t, err)
}

// serveInputRegisters answers Modbus TCP read requests with regs.
func serveInputRegisters(t *testing.T, regs []uint16) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			req := make([]byte, 12)
			if _, err := io.ReadFull(conn, req); err != nil {
				return
			}
			qty := binary.BigEndian.Uint16(req[10:12])
			data := make([]byte, 2*int(qty))
			for i := 0; i < int(qty) && i < len(regs); i++ {
				binary.BigEndian.PutUint16(data[2*i:], regs[i])
			}
			resp := make([]byte, 9, 9+len(data))
			// Echo transaction and protocol id; length covers unit, fc, count and data.
			copy(resp[0:4], req[0:4])
			binary.BigEndian.PutUint16(resp[4:6], uint16(3+len(data)))
			resp[6] = req[6]
			resp[7] = req[7]
			resp[8] = byte(len(data))
			resp = append(resp, data...)
			if _, err := conn.Write(resp); err != nil {
				return
			}
		}
	}()
	return ln.Addr().String()
}

func TestModbusMeter_ReadWatts(t *testing.T) {
	addr := serveInputRegisters(t, []uint16{0x0000, 0x0050})

	meter, err := NewModbusMeter(ModbusConfig{
		Endpoint: addr,
		UnitID:   1,
		Register: 12,
		Format:   "uint32",
		Timeout:  time.Second,
	})
	require.NoError(t, err)
	defer meter.Close()

	watts, err := meter.ReadWatts()
	require.NoError(t, err)
	assert.Equal(t, 80.0, watts)
}

func TestModbusMeter_ConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	meter, err := NewModbusMeter(ModbusConfig{Endpoint: addr, Timeout: 200 * time.Millisecond})
	require.NoError(t, err)

	_, err = meter.ReadWatts()
	assert.Error(t, err)
}
