package chain

import "testing"

func TestNetworkDifficultyAtGenesis(t *testing.T) {
	if got := NetworkDifficulty(0); got != 2 {
		t.Fatalf("NetworkDifficulty(0) = %d, want 2", got)
	}
}

func TestNetworkDifficultyIncreasesWithChainLength(t *testing.T) {
	early := NetworkDifficulty(0)
	later := NetworkDifficulty(500000)
	if later <= early {
		t.Fatalf("expected difficulty to increase: early=%d later=%d", early, later)
	}
}

func TestRewardAtGenesis(t *testing.T) {
	if got := Reward(0); got != 100 {
		t.Fatalf("Reward(0) = %v, want 100", got)
	}
}

func TestRewardIsHundredOverOnePlusEpoch(t *testing.T) {
	if got := Reward(100000); got != 50 {
		t.Fatalf("Reward(100000) = %v, want 50", got)
	}
	if got := Reward(200000); got != 100.0/3.0 {
		t.Fatalf("Reward(200000) = %v, want %v", got, 100.0/3.0)
	}
}
