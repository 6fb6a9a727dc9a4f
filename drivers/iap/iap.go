// Package iap handles in-application programming hand-off: a boot request
// is two magic words in the battery-backed registers, read by the
// bootloader after reset.
package iap

import (
	"context"

	"boardcode-go/errcode"
)

const op = "iap"

const (
	Magic1 uint16 = 0x1122
	Magic2 uint16 = 0xAA55
)

// Backup register slots used by the hand-off.
const (
	RegMagic1 = 0
	RegMagic2 = 1
	RegBoots  = 2
)

// Registers is the backup register file.
type Registers interface {
	EnableBackup() error
	ReadBackup(reg int) uint16
	WriteBackup(reg int, v uint16)
}

type IAP struct {
	regs  Registers
	ready bool
}

func New(regs Registers) *IAP { return &IAP{regs: regs} }

// Init unlocks the backup domain and counts the boot.
func (p *IAP) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.regs.EnableBackup(); err != nil {
		return errcode.Wrap(errcode.Degraded, op, err)
	}
	p.ready = true
	p.regs.WriteBackup(RegBoots, p.regs.ReadBackup(RegBoots)+1)
	return nil
}

func (p *IAP) Ready() bool { return p.ready }

// Requested reports a pending boot request.
func (p *IAP) Requested() bool {
	return p.ready && p.regs.ReadBackup(RegMagic1) == Magic1 && p.regs.ReadBackup(RegMagic2) == Magic2
}

// Request arms the bootloader for the next reset.
func (p *IAP) Request() error {
	if !p.ready {
		return errcode.New(errcode.NotInitialized, op, "backup domain")
	}
	p.regs.WriteBackup(RegMagic1, Magic1)
	p.regs.WriteBackup(RegMagic2, Magic2)
	return nil
}

func (p *IAP) Clear() {
	if !p.ready {
		return
	}
	p.regs.WriteBackup(RegMagic1, 0)
	p.regs.WriteBackup(RegMagic2, 0)
}

// Boots returns the boot counter.
func (p *IAP) Boots() uint16 {
	if !p.ready {
		return 0
	}
	return p.regs.ReadBackup(RegBoots)
}
