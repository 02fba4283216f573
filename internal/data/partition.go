package data

import (
	"fmt"
	"math/rand"
)

// Partition splits ds into numClients IID shards of near-equal size using a
// seeded shuffle. When the sample count does not divide evenly, the last
// shard absorbs the remainder.
func Partition(ds *Dataset, numClients int, seed int64) ([]*Dataset, error) {
	n := ds.Len()
	if numClients < 1 {
		return nil, fmt.Errorf("number of clients must be positive, got %d", numClients)
	}
	if numClients > n {
		return nil, fmt.Errorf("cannot split %d samples across %d clients", n, numClients)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)

	base := n / numClients

	shards := make([]*Dataset, numClients)
	offset := 0
	for c := 0; c < numClients; c++ {
		size := base
		if c == numClients-1 {
			size = n - offset
		}
		shards[c] = subset(ds, perm[offset:offset+size])
		offset += size
	}
	return shards, nil
}

// SplitTrainVal splits ds into a training part and a validation part, with
// valRatio of the samples (rounded down, at least one when possible) going
// to validation.
func SplitTrainVal(ds *Dataset, valRatio float64, seed int64) (*Dataset, *Dataset, error) {
	if valRatio < 0 || valRatio >= 1 {
		return nil, nil, fmt.Errorf("validation ratio must be in [0, 1), got %f", valRatio)
	}

	n := ds.Len()
	numVal := int(float64(n) * valRatio)
	if numVal == 0 && valRatio > 0 && n > 1 {
		numVal = 1
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	val := subset(ds, perm[:numVal])
	train := subset(ds, perm[numVal:])
	return train, val, nil
}

func subset(ds *Dataset, indices []int) *Dataset {
	out := &Dataset{
		Images: make([]float32, 0, len(indices)*ImageSize),
		Labels: make([]int, 0, len(indices)),
	}
	for _, i := range indices {
		out.Images = append(out.Images, ds.Image(i)...)
		out.Labels = append(out.Labels, ds.Labels[i])
	}
	return out
}
