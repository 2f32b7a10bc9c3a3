// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux
// +build linux

package kernel

import (
	"bytes"
	"fmt"
	"net"
	"sync"

	"github.com/google/nftables"
	"github.com/google/nftables/binaryutil"
	"github.com/google/nftables/expr"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"grimm.is/wlanguard/internal/errors"
	"grimm.is/wlanguard/internal/logging"
	"grimm.is/wlanguard/internal/qos"
)

const inputChain = "input"

// LinuxKernel implements Kernel using the google/nftables and vishvananda/netlink libraries.
type LinuxKernel struct {
	tableName string
	qos       *qos.Manager
	logger    *logging.Logger
	mu        sync.Mutex
}

// NewLinuxKernel creates a new Linux kernel provider.
func NewLinuxKernel(tableName string, logger *logging.Logger) *LinuxKernel {
	if tableName == "" {
		tableName = "wlanguard"
	}
	if logger == nil {
		logger = logging.WithComponent("kernel")
	}
	return &LinuxKernel{tableName: tableName, qos: qos.NewManager(logger), logger: logger}
}

// Available checks that nftables can be queried, which needs CAP_NET_ADMIN.
func (k *LinuxKernel) Available() error {
	conn, err := nftables.New()
	if err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "nftables connection")
	}
	if _, err := conn.ListTables(); err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "nftables not usable")
	}
	return nil
}

// BlockIP drops all inbound traffic from ip.
func (k *LinuxKernel) BlockIP(ip net.IP) error {
	proto, addr, offset := byte(unix.NFPROTO_IPV4), ip.To4(), uint32(12)
	if addr == nil {
		proto, addr, offset = unix.NFPROTO_IPV6, ip.To16(), 8
	}
	if addr == nil {
		return errors.Errorf(errors.KindValidation, "invalid IP %v", ip)
	}

	exprs := []expr.Any{
		&expr.Meta{Key: expr.MetaKeyNFPROTO, Register: 1},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: []byte{proto}},
		&expr.Payload{DestRegister: 1, Base: expr.PayloadBaseNetworkHeader, Offset: offset, Len: uint32(len(addr))},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: addr},
		&expr.Counter{},
		&expr.Verdict{Kind: expr.VerdictDrop},
	}
	return k.addDropRule(RuleTag("block_ip", ip.String()), exprs)
}

// BlockMAC drops inbound Ethernet frames whose source address is mac.
func (k *LinuxKernel) BlockMAC(mac net.HardwareAddr) error {
	if len(mac) != 6 {
		return errors.Errorf(errors.KindValidation, "invalid MAC %v", mac)
	}
	exprs := []expr.Any{
		&expr.Meta{Key: expr.MetaKeyIIFTYPE, Register: 1},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: binaryutil.NativeEndian.PutUint16(unix.ARPHRD_ETHER)},
		&expr.Payload{DestRegister: 1, Base: expr.PayloadBaseLLHeader, Offset: 6, Len: 6},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: []byte(mac)},
		&expr.Counter{},
		&expr.Verdict{Kind: expr.VerdictDrop},
	}
	return k.addDropRule(RuleTag("block_mac", mac.String()), exprs)
}

func (k *LinuxKernel) addDropRule(tag string, exprs []expr.Any) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	conn, err := nftables.New()
	if err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "nftables connection")
	}

	table := conn.AddTable(&nftables.Table{Family: nftables.TableFamilyINet, Name: k.tableName})
	policy := nftables.ChainPolicyAccept
	chain := conn.AddChain(&nftables.Chain{
		Name:     inputChain,
		Table:    table,
		Type:     nftables.ChainTypeFilter,
		Hooknum:  nftables.ChainHookInput,
		Priority: nftables.ChainPriorityFilter,
		Policy:   &policy,
	})
	conn.AddRule(&nftables.Rule{Table: table, Chain: chain, Exprs: exprs, UserData: []byte(tag)})

	if err := conn.Flush(); err != nil {
		return errors.Attr(errors.Wrap(err, errors.KindExecution, "failed to install nftables rule"), "rule", tag)
	}
	k.logger.Info("drop rule installed", "table", k.tableName, "rule", tag)
	return nil
}

// Shape installs a root TBF qdisc.
func (k *LinuxKernel) Shape(t qos.TBF) error {
	if err := k.qos.Apply(t); err != nil {
		return errors.Wrap(err, errors.KindExecution, "shape")
	}
	return nil
}

// Unshape removes root qdiscs from iface.
func (k *LinuxKernel) Unshape(iface string) error {
	if err := k.qos.Clear(iface); err != nil {
		return errors.Wrap(err, errors.KindExecution, "unshape")
	}
	return nil
}

// FlushNeighbors deletes dynamic IPv4 neighbor entries. Permanent entries are kept.
func (k *LinuxKernel) FlushNeighbors(iface string) error {
	index := 0
	if iface != "" {
		link, err := netlink.LinkByName(iface)
		if err != nil {
			return errors.Wrapf(err, errors.KindNotFound, "interface %s", iface)
		}
		index = link.Attrs().Index
	}

	neighs, err := netlink.NeighList(index, netlink.FAMILY_V4)
	if err != nil {
		return errors.Wrap(err, errors.KindExecution, "failed to list neighbors")
	}

	var failed int
	for i := range neighs {
		n := neighs[i]
		if n.State&(netlink.NUD_PERMANENT|netlink.NUD_NOARP) != 0 {
			continue
		}
		if err := netlink.NeighDel(&n); err != nil {
			failed++
			k.logger.Debug("failed to delete neighbor", "ip", n.IP.String(), "error", err)
		}
	}
	if failed > 0 {
		return errors.Errorf(errors.KindExecution, "failed to delete %d of %d neighbors", failed, len(neighs))
	}
	return nil
}

// LookupNeighbor finds the IPv4 address currently mapped to mac.
func (k *LinuxKernel) LookupNeighbor(mac net.HardwareAddr) (net.IP, bool) {
	neighs, err := netlink.NeighList(0, netlink.FAMILY_V4)
	if err != nil {
		return nil, false
	}
	for _, n := range neighs {
		if bytes.Equal(n.HardwareAddr, mac) && n.State&netlink.NUD_FAILED == 0 {
			return n.IP, true
		}
	}
	return nil, false
}

// Counters returns packet counts of the drop rules in our table, keyed by rule tag.
func (k *LinuxKernel) Counters() (map[string]uint64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	conn, err := nftables.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create nftables connection: %w", err)
	}

	table, err := k.findTable(conn)
	if err != nil {
		return nil, err
	}
	counters := make(map[string]uint64)
	if table == nil {
		// Table doesn't exist yet, return empty counters
		return counters, nil
	}

	rules, err := conn.GetRules(table, &nftables.Chain{Name: inputChain, Table: table})
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	for _, rule := range rules {
		if len(rule.UserData) == 0 {
			continue
		}
		for _, e := range rule.Exprs {
			if counter, ok := e.(*expr.Counter); ok {
				counters[string(rule.UserData)] += counter.Packets
			}
		}
	}
	return counters, nil
}

// Reset deletes the whole table. A missing table is not an error.
func (k *LinuxKernel) Reset() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	conn, err := nftables.New()
	if err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "nftables connection")
	}
	table, err := k.findTable(conn)
	if err != nil {
		return err
	}
	if table == nil {
		return nil
	}
	conn.DelTable(table)
	if err := conn.Flush(); err != nil {
		return errors.Wrap(err, errors.KindExecution, "failed to delete nftables table")
	}
	k.logger.Info("nftables table removed", "table", k.tableName)
	return nil
}

func (k *LinuxKernel) findTable(conn *nftables.Conn) (*nftables.Table, error) {
	tables, err := conn.ListTables()
	if err != nil {
		return nil, errors.Wrap(err, errors.KindExecution, "failed to list tables")
	}
	for _, t := range tables {
		if t.Name == k.tableName && t.Family == nftables.TableFamilyINet {
			return t, nil
		}
	}
	return nil, nil
}
