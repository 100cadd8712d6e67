package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGrantsDualActivation(t *testing.T) {
	require.Equal(t, []ServiceClass{ServiceGymFloor}, Grants(PackageFreeGym))
	require.Equal(t, []ServiceClass{ServicePilatesClass}, Grants(PackagePilates))
	require.Equal(t, []ServiceClass{ServicePilatesClass, ServiceGymFloor}, Grants(PackageUltimate))
	require.Equal(t, []ServiceClass{ServicePilatesClass, ServiceGymFloor}, Grants(PackageUltimateMedium))
}

func TestCoupledDepositsFreeGymHasNone(t *testing.T) {
	require.Empty(t, CoupledDeposits(PackageFreeGym))
	for _, p := range []PackageClass{PackagePilates, PackageUltimate, PackageUltimateMedium} {
		require.Equal(t, []ServiceClass{ServicePilatesClass}, CoupledDeposits(p), "package %s", p)
	}
}

func TestWeeklyTarget(t *testing.T) {
	n, ok := WeeklyTarget(PackageUltimate)
	require.True(t, ok)
	require.Equal(t, 3, n)

	n, ok = WeeklyTarget(PackageUltimateMedium)
	require.True(t, ok)
	require.Equal(t, 1, n)

	_, ok = WeeklyTarget(PackagePilates)
	require.False(t, ok)
	_, ok = WeeklyTarget(PackageFreeGym)
	require.False(t, ok)
}

func TestInitialCredits(t *testing.T) {
	cases := []struct {
		pkg  PackageClass
		dur  DurationOption
		want int
	}{
		{PackagePilates, DurationPilatesTrial, 1},
		{PackagePilates, DurationPilates1Month, 4},
		{PackagePilates, DurationPilates2Mon, 8},
		{PackagePilates, DurationPilates3Mon, 16},
		{PackagePilates, DurationPilates6Mon, 25},
		{PackagePilates, DurationPilates1Year, 50},
		{PackageUltimate, DurationMonth, 3},
		{PackageUltimateMedium, DurationMonth, 1},
		{PackageFreeGym, DurationYear, 0},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, InitialCredits(tc.pkg, tc.dur), "%s/%s", tc.pkg, tc.dur)
	}
}

func TestDurationDays(t *testing.T) {
	n, ok := DurationYear.Days()
	require.True(t, ok)
	require.Equal(t, 365, n)

	n, ok = DurationLesson.Days()
	require.True(t, ok)
	require.Equal(t, 1, n)

	_, ok = DurationOption("fortnight").Days()
	require.False(t, ok)
}

func TestRequiresDeposit(t *testing.T) {
	require.True(t, ServicePilatesClass.RequiresDeposit())
	require.False(t, ServiceGymFloor.RequiresDeposit())
}

func TestAllowsInstallments(t *testing.T) {
	require.True(t, AllowsInstallments(PackageUltimate))
	require.True(t, AllowsInstallments(PackageUltimateMedium))
	require.False(t, AllowsInstallments(PackagePilates))
	require.False(t, AllowsInstallments(PackageFreeGym))
}
