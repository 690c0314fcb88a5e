package registry

import (
	"fmt"
	"math/rand"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestRegistry(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Registry Suite")
}

type sock struct{ name string }

var _ = Describe("Registry", func() {
	var (
		reg        *Registry[*sock]
		assigned   []string
		lost       []string
		emptyCalls int
	)

	BeforeEach(func() {
		assigned, lost, emptyCalls = nil, nil, 0
		reg = New[*sock](Hooks{
			MasterAssigned: func(id string) { assigned = append(assigned, id) },
			MasterLost:     func(id string) { lost = append(lost, id) },
			Empty:          func() { emptyCalls++ },
		})
	})

	Describe("AssignID", func() {
		It("should make the first named connection master", func() {
			a, b := &sock{"a"}, &sock{"b"}
			reg.AcceptPending(a)
			reg.AcceptPending(b)

			master, err := reg.AssignID(a, "host/123/main")
			Expect(err).NotTo(HaveOccurred())
			Expect(master).To(BeTrue())

			master, err = reg.AssignID(b, "host/124/child")
			Expect(err).NotTo(HaveOccurred())
			Expect(master).To(BeFalse())

			Expect(reg.Master()).To(Equal("host/123/main"))
			Expect(assigned).To(Equal([]string{"host/123/main"}))
			Expect(reg.ListIDs()).To(Equal([]string{"host/123/main", "host/124/child"}))
		})

		It("should name a connection exactly once", func() {
			a := &sock{"a"}
			reg.AcceptPending(a)
			_, err := reg.AssignID(a, "x")
			Expect(err).NotTo(HaveOccurred())

			_, err = reg.AssignID(a, "y")
			Expect(err).To(MatchError(ErrAlreadyNamed))
			Expect(reg.ListIDs()).To(Equal([]string{"x"}))
		})

		It("should reject unknown connections and duplicate ids", func() {
			_, err := reg.AssignID(&sock{"ghost"}, "x")
			Expect(err).To(MatchError(ErrUnknownConnection))

			a, b := &sock{"a"}, &sock{"b"}
			reg.AcceptPending(a)
			reg.AcceptPending(b)
			_, err = reg.AssignID(a, "x")
			Expect(err).NotTo(HaveOccurred())
			_, err = reg.AssignID(b, "x")
			Expect(err).To(MatchError(ErrDuplicateID))
			Expect(reg.IsPending(b)).To(BeTrue())
		})
	})

	Describe("Remove", func() {
		It("should check pending membership first", func() {
			a := &sock{"a"}
			reg.AcceptPending(a)

			rm, ok := reg.Remove(a)
			Expect(ok).To(BeTrue())
			Expect(rm.Pending).To(BeTrue())
			Expect(emptyCalls).To(BeZero())
			Expect(lost).To(BeEmpty())
		})

		It("should signal master lost distinctly from session empty", func() {
			a, b := &sock{"a"}, &sock{"b"}
			reg.AcceptPending(a)
			reg.AcceptPending(b)
			_, _ = reg.AssignID(a, "m")
			_, _ = reg.AssignID(b, "c")

			rm, ok := reg.Remove(a)
			Expect(ok).To(BeTrue())
			Expect(rm).To(Equal(Removal{ID: "m", WasMaster: true}))
			Expect(lost).To(Equal([]string{"m"}))
			Expect(emptyCalls).To(BeZero())
			Expect(reg.HasMaster()).To(BeFalse())

			rm, _ = reg.Remove(b)
			Expect(rm).To(Equal(Removal{ID: "c", Empty: true}))
			Expect(emptyCalls).To(Equal(1))
		})

		It("should ignore connections it does not know", func() {
			_, ok := reg.Remove(&sock{"ghost"})
			Expect(ok).To(BeFalse())
		})

		It("should let a later connection become master after the master left", func() {
			a, b := &sock{"a"}, &sock{"b"}
			reg.AcceptPending(a)
			_, _ = reg.AssignID(a, "m")
			reg.Remove(a)

			reg.AcceptPending(b)
			master, err := reg.AssignID(b, "n")
			Expect(err).NotTo(HaveOccurred())
			Expect(master).To(BeTrue())
			Expect(assigned).To(Equal([]string{"m", "n"}))
		})
	})

	Describe("Reset", func() {
		It("should drop everything without hooks", func() {
			a := &sock{"a"}
			reg.AcceptPending(a)
			_, _ = reg.AssignID(a, "m")
			reg.AcceptPending(&sock{"b"})

			reg.Reset()
			Expect(reg.Len()).To(BeZero())
			Expect(reg.HasMaster()).To(BeFalse())
			Expect(lost).To(BeEmpty())
			Expect(emptyCalls).To(BeZero())
		})
	})

	Describe("at most one master", func() {
		It("should hold for random connect and disconnect sequences", func() {
			rng := rand.New(rand.NewSource(42))
			var live []*sock
			for step := 0; step < 2000; step++ {
				switch op := rng.Intn(3); {
				case op == 0 || len(live) == 0:
					s := &sock{fmt.Sprintf("s%d", step)}
					reg.AcceptPending(s)
					live = append(live, s)
				case op == 1:
					s := live[rng.Intn(len(live))]
					before := reg.Master()
					_, _ = reg.AssignID(s, s.name)
					if before != "" {
						Expect(reg.Master()).To(Equal(before))
					}
				default:
					i := rng.Intn(len(live))
					reg.Remove(live[i])
					live = append(live[:i], live[i+1:]...)
				}

				masters := 0
				for _, id := range reg.ListIDs() {
					if id == reg.Master() {
						masters++
					}
				}
				Expect(masters).To(BeNumerically("<=", 1))
				if reg.HasMaster() {
					Expect(masters).To(Equal(1))
				}
			}
		})
	})
})
