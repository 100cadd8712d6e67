package model

// PackageClass is the closed set of purchasable membership packages.
// It replaces the catalog-name string matching the legacy system used:
// every rule that used to be keyed off a package name substring is now
// driven by the static tables below.
type PackageClass string

const (
	PackageFreeGym        PackageClass = "FREE_GYM"
	PackagePilates        PackageClass = "PILATES"
	PackageUltimate       PackageClass = "ULTIMATE"
	PackageUltimateMedium PackageClass = "ULTIMATE_MEDIUM"
)

// AllPackageClasses lists every valid package class, in display order.
var AllPackageClasses = []PackageClass{
	PackageFreeGym, PackagePilates, PackageUltimate, PackageUltimateMedium,
}

// Valid reports whether p is a known package class.
func (p PackageClass) Valid() bool {
	switch p {
	case PackageFreeGym, PackagePilates, PackageUltimate, PackageUltimateMedium:
		return true
	}
	return false
}

// ServiceClass is the category of service a ledger entry is denominated
// in.  PilatesClass consumes one credit per booking; GymFloor is a
// time-based entitlement with no credit ledger behind it.
type ServiceClass string

const (
	ServicePilatesClass ServiceClass = "PILATES_CLASS"
	ServiceGymFloor     ServiceClass = "GYM_FLOOR"
)

// Valid reports whether s is a known service class.
func (s ServiceClass) Valid() bool {
	return s == ServicePilatesClass || s == ServiceGymFloor
}

// RequiresDeposit reports whether acting on the service class consumes a
// ledger credit.  Gym floor access is granted by the membership window
// alone.
func (s ServiceClass) RequiresDeposit() bool {
	return s == ServicePilatesClass
}

// grants maps a package to the service classes it activates on approval.
// Ultimate packages activate both pilates classes and the gym floor in a
// single approval (dual activation).
var grants = map[PackageClass][]ServiceClass{
	PackageFreeGym:        {ServiceGymFloor},
	PackagePilates:        {ServicePilatesClass},
	PackageUltimate:       {ServicePilatesClass, ServiceGymFloor},
	PackageUltimateMedium: {ServicePilatesClass, ServiceGymFloor},
}

// Grants returns the service classes a package activates on approval.
func Grants(p PackageClass) []ServiceClass { return grants[p] }

// coupledDeposits maps a package to the credit-denominated service
// classes whose current ledger entry must be invalidated when a
// membership of that package stops being effective.  This table is the
// single source of truth for cascade deactivation.
var coupledDeposits = map[PackageClass][]ServiceClass{
	PackageFreeGym:        {},
	PackagePilates:        {ServicePilatesClass},
	PackageUltimate:       {ServicePilatesClass},
	PackageUltimateMedium: {ServicePilatesClass},
}

// CoupledDeposits returns the service classes whose ledger entries cascade
// with a membership of package p.
func CoupledDeposits(p PackageClass) []ServiceClass { return coupledDeposits[p] }

// weeklyTargets maps a package to the absolute credit amount its pilates
// ledger is reset to by the weekly refill.  Packages absent from the map
// are not refilled.
var weeklyTargets = map[PackageClass]int{
	PackageUltimate:       3,
	PackageUltimateMedium: 1,
}

// WeeklyTarget returns the refill target for a package and whether the
// package participates in the weekly refill at all.
func WeeklyTarget(p PackageClass) (int, bool) {
	t, ok := weeklyTargets[p]
	return t, ok
}

// DurationOption identifies the purchased duration of a membership.
type DurationOption string

const (
	DurationYear          DurationOption = "year"
	DurationSemester      DurationOption = "semester"
	DurationThreeMonths   DurationOption = "3months"
	DurationMonth         DurationOption = "month"
	DurationLesson        DurationOption = "lesson"
	DurationPilatesTrial  DurationOption = "pilates_trial"
	DurationPilates1Month DurationOption = "pilates_1month"
	DurationPilates2Mon   DurationOption = "pilates_2months"
	DurationPilates3Mon   DurationOption = "pilates_3months"
	DurationPilates6Mon   DurationOption = "pilates_6months"
	DurationPilates1Year  DurationOption = "pilates_1year"
)

// durationDays maps each duration option to its length in calendar days.
var durationDays = map[DurationOption]int{
	DurationYear:          365,
	DurationSemester:      180,
	DurationThreeMonths:   90,
	DurationMonth:         30,
	DurationLesson:        1,
	DurationPilatesTrial:  7,
	DurationPilates1Month: 30,
	DurationPilates2Mon:   60,
	DurationPilates3Mon:   90,
	DurationPilates6Mon:   180,
	DurationPilates1Year:  365,
}

// Days returns the calendar-day length of the duration option and whether
// the option is known.
func (d DurationOption) Days() (int, bool) {
	n, ok := durationDays[d]
	return n, ok
}

// pilatesClassCounts maps pilates duration options to the number of class
// credits granted on approval.
var pilatesClassCounts = map[DurationOption]int{
	DurationPilatesTrial:  1,
	DurationPilates1Month: 4,
	DurationPilates2Mon:   8,
	DurationPilates3Mon:   16,
	DurationPilates6Mon:   25,
	DurationPilates1Year:  50,
}

// InitialCredits returns the number of pilates credits a freshly approved
// membership grants.  Ultimate packages start with their weekly target;
// pilates packages grant the class count bundled with the duration.
func InitialCredits(p PackageClass, d DurationOption) int {
	switch p {
	case PackagePilates:
		return pilatesClassCounts[d]
	case PackageUltimate:
		return weeklyTargets[PackageUltimate]
	case PackageUltimateMedium:
		return weeklyTargets[PackageUltimateMedium]
	}
	return 0
}

// AllowsInstallments reports whether a membership request for package p
// may carry a staged payment plan.
func AllowsInstallments(p PackageClass) bool {
	return p == PackageUltimate || p == PackageUltimateMedium
}
