package service

import (
	"patchbay/internal/adapter"
	"patchbay/internal/domain"
)

// Resolve maps a volatile address to the port's stable name. If the owner or
// port can no longer be looked up, the numeric "owner:port" form is returned.
func Resolve(reg adapter.Registry, addr domain.Address) domain.Name {
	info, err := reg.PortInfo(addr)
	if err != nil {
		return domain.FallbackName(addr)
	}
	return nameFor(reg, info)
}

// nameFor builds the name of a port whose info is already known
func nameFor(reg adapter.Registry, info domain.PortInfo) domain.Name {
	owner, err := reg.OwnerInfo(info.Address.Owner)
	if err != nil {
		return domain.FallbackName(info.Address)
	}
	return domain.NewName(owner, info.Name)
}
