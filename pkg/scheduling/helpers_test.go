/*
Copyright The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package scheduling_test

import (
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/nrgeol/schedcore/pkg/scheduling"
)

func qty(v int64) resource.Quantity {
	return *resource.NewQuantity(v, resource.DecimalSI)
}

func resources(cpu, mem int64) scheduling.ResourceList {
	return scheduling.ResourceList{"cpu": qty(cpu), "memory": qty(mem)}
}

func unit(id string, cpu, mem int64) *scheduling.ResourceUnit {
	return scheduling.NewResourceUnit(id, "", resources(cpu, mem))
}

func request(requestID string, cpu, mem int64) scheduling.ScheduleRequest {
	return scheduling.ScheduleRequest{
		RequestID:  requestID,
		InstanceID: requestID,
		Resources:  resources(cpu, mem),
		Options:    scheduling.SchedulingOptions{Priority: 5},
	}
}
