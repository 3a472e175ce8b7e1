package topology_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/imamik/rayform/internal/config"
	"github.com/imamik/rayform/internal/topology"
	"github.com/imamik/rayform/internal/util/labels"
	"github.com/imamik/rayform/internal/util/ptr"
)

var _ = Describe("Build", func() {
	var cfg *config.Config

	BeforeEach(func() {
		cfg = config.Default("demo")
	})

	build := func() *topology.Topology {
		t, err := topology.Build(cfg)
		Expect(err).NotTo(HaveOccurred())
		return t
	}

	Describe("network shape", func() {
		It("declares one network, gateway and subnet wired together", func() {
			t := build()
			Expect(t.Network.Name).To(Equal("demo-vpc"))
			Expect(t.Network.CIDR).To(Equal("10.0.0.0/16"))
			Expect(t.Gateway.Network).To(Equal(t.Network.Name))
			Expect(t.Subnet.Network).To(Equal(t.Network.Name))
			Expect(t.Subnet.CIDR).To(Equal("10.0.1.0/24"))
			Expect(t.Network.EnableDNSSupport).To(BeTrue())
			Expect(t.Network.EnableDNSHostnames).To(BeTrue())
			Expect(t.Subnet.MapPublicIPOnLaunch).To(BeTrue())
		})

		It("routes the default destination to the gateway and never the subnet", func() {
			t := build()
			Expect(t.RouteTable.Routes).To(ConsistOf(topology.Route{
				Destination: topology.DefaultRouteCIDR,
				TargetKind:  topology.TargetGateway,
				Target:      t.Gateway.Name,
			}))
			for _, r := range t.RouteTable.Routes {
				Expect(r.TargetKind).NotTo(Equal(topology.TargetSubnet))
			}
		})

		It("associates the subnet with the route table", func() {
			t := build()
			Expect(t.Association).To(Equal(topology.Association{
				Subnet:     t.Subnet.Name,
				RouteTable: t.RouteTable.Name,
			}))
		})
	})

	Describe("firewall", func() {
		It("allows 22, 80, 443 and the cluster port by default", func() {
			t := build()
			Expect(t.IngressPorts()).To(Equal([]int{22, 80, 443, 6379}))
			for _, r := range t.Firewall.Ingress {
				Expect(r.Protocol).To(Equal("tcp"))
				Expect(r.FromPort).To(Equal(r.ToPort))
				Expect(r.CIDR).To(Equal("0.0.0.0/0"))
			}
		})

		It("omits the cluster port when it is not exposed", func() {
			cfg.Firewall.ExposeClusterPort = ptr.Bool(false)
			Expect(build().IngressPorts()).To(Equal([]int{22, 80, 443}))
		})

		It("does not duplicate the cluster port when it is already listed", func() {
			cfg.Firewall.IngressPorts = []int{22, 6379}
			Expect(build().IngressPorts()).To(Equal([]int{22, 6379}))
		})

		It("expands every port for every source", func() {
			cfg.Firewall.SourceCIDRs = []string{"10.1.0.0/16", "192.168.0.0/24"}
			cfg.Firewall.ExposeClusterPort = ptr.Bool(false)
			Expect(build().Firewall.Ingress).To(HaveLen(6))
		})

		It("allows all egress", func() {
			Expect(build().Firewall.Egress).To(ConsistOf(topology.Rule{Protocol: "-1", CIDR: "0.0.0.0/0"}))
		})
	})

	Describe("instances", func() {
		DescribeTable("one coordinator and N workers",
			func(n int) {
				cfg.Nodes.Workers = ptr.Int(n)
				t := build()

				coordinators := 0
				for _, inst := range t.Instances() {
					if inst.Role == topology.RoleCoordinator {
						coordinators++
					}
					Expect(inst.Subnet).To(Equal(t.Subnet.Name))
					Expect(inst.RuleSet).To(Equal(t.Firewall.Name))
				}
				Expect(coordinators).To(Equal(1))
				Expect(t.Workers).To(HaveLen(n))
				for i, w := range t.Workers {
					Expect(w.Index).To(Equal(i + 1))
					Expect(w.Tags).To(HaveKeyWithValue(labels.KeyRole, labels.RoleWorker))
				}
			},
			Entry("no workers", 0),
			Entry("one worker", 1),
			Entry("default", 2),
			Entry("many workers", 7),
		)

		It("names workers by 1-based index", func() {
			t := build()
			Expect(t.Coordinator.Name).To(Equal("demo-head"))
			Expect(t.Workers[0].Name).To(Equal("demo-worker-1"))
			Expect(t.Workers[1].Name).To(Equal("demo-worker-2"))
		})

		It("rejects a negative worker count", func() {
			cfg.Nodes.Workers = ptr.Int(-1)
			_, err := topology.Build(cfg)
			Expect(err).To(MatchError(ContainSubstring("non-negative")))
		})
	})

	Describe("tags", func() {
		It("merges user tags but keeps the deployment selector", func() {
			cfg.Tags = map[string]string{
				"team":               "ml",
				labels.KeyDeployment: "other",
			}
			t := build()
			Expect(t.Network.Tags).To(HaveKeyWithValue("team", "ml"))
			Expect(t.Network.Tags).To(HaveKeyWithValue(labels.KeyDeployment, "demo"))
			Expect(t.Tags).NotTo(HaveKey("team"))
		})
	})
})
