//go:build linux

// Package socketcan exchanges frames with a raw AF_CAN socket, including
// CAN FD frames up to 64 payload bytes.
package socketcan

import (
	"encoding/binary"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/uavcan-go/canard/can"
)

// canfdMTU is CANFD_MTU from linux/can.h (sizeof(struct canfd_frame));
// golang.org/x/sys/unix does not export it.
const canfdMTU = 72

type Device struct {
	fd int
}

func Open(iface string) (*Device, error) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("socket(AF_CAN): %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, 1); err != nil {
		// Older kernels may not know this option; classic frames still work.
		if err != unix.ENOPROTOOPT {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("enable CAN FD: %w", err)
		}
	}
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("if %q: %w", iface, err)
	}
	sa := &unix.SockaddrCAN{Ifindex: ifi.Index}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind(can@%s): %w", iface, err)
	}
	return &Device{fd: fd}, nil
}

func (d *Device) Close() error { return unix.Close(d.fd) }

// ReadFrame blocks until one extended-ID data frame arrives and fills fr
// with a fresh payload slice. RTR, error, and standard-ID frames are not
// part of the protocol and are skipped.
//
// struct can_frame / canfd_frame (linux/can.h):
//
//	can_id   u32  [0:4]   (includes EFF/RTR/ERR flags, host byte order)
//	len      u8   [4]
//	flags    u8   [5]     (FD only)
//	pad      2B   [6:8]
//	data     []   [8:]    (8 or 64 bytes)
func (d *Device) ReadFrame(fr *can.Frame) error {
	var buf [canfdMTU]byte
	for {
		n, err := unix.Read(d.fd, buf[:])
		if err != nil {
			return err
		}
		if n != unix.CAN_MTU && n != canfdMTU {
			return fmt.Errorf("short read: %d", n)
		}
		id := binary.LittleEndian.Uint32(buf[0:4])
		if id&unix.CAN_EFF_FLAG == 0 || id&(unix.CAN_RTR_FLAG|unix.CAN_ERR_FLAG) != 0 {
			continue
		}
		ln := int(buf[4])
		max := can.MTUClassic
		if n == canfdMTU {
			max = can.MTUFD
		}
		if ln > max {
			ln = max
		}
		fr.ID = id & unix.CAN_EFF_MASK
		fr.Payload = append([]byte(nil), buf[8:8+ln]...)
		return nil
	}
}

// WriteFrame writes one extended-ID data frame, as a classic frame when the
// payload fits and as a CAN FD frame otherwise. The payload length must be
// a valid CAN length; the TX pipeline guarantees that for its own frames.
func (d *Device) WriteFrame(fr can.Frame) error {
	if len(fr.Payload) <= can.MTUClassic {
		var buf [unix.CAN_MTU]byte
		binary.LittleEndian.PutUint32(buf[0:4], fr.ID|unix.CAN_EFF_FLAG)
		buf[4] = byte(len(fr.Payload))
		copy(buf[8:], fr.Payload)
		_, err := unix.Write(d.fd, buf[:])
		return err
	}
	var buf [canfdMTU]byte
	binary.LittleEndian.PutUint32(buf[0:4], fr.ID|unix.CAN_EFF_FLAG)
	buf[4] = byte(len(fr.Payload))
	copy(buf[8:], fr.Payload)
	_, err := unix.Write(d.fd, buf[:])
	return err
}
