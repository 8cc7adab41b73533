package rapt_test

import (
  "math"
  "reflect"
  "testing"

  "github.com/robertof/go-rapt-exporter/device"
  "github.com/robertof/go-rapt-exporter/device/rapt"
  "github.com/robertof/go-rapt-exporter/utils"
)

func TestValidate(t *testing.T) {
  cases := []struct {
    name string
    in device.Reading
    want device.Reading
  }{
    {
      name: "all fields plausible",
      in: device.Reading{
        Temperature: utils.Ptr(19.5),
        SpecificGravity: utils.Ptr(1.048),
        Battery: utils.Ptr(87),
      },
      want: device.Reading{
        Temperature: utils.Ptr(19.5),
        SpecificGravity: utils.Ptr(1.048),
        Battery: utils.Ptr(87),
      },
    },
    {
      name: "bounds are inclusive",
      in: device.Reading{
        Temperature: utils.Ptr(-50.0),
        SpecificGravity: utils.Ptr(2.0),
        Battery: utils.Ptr(0),
      },
      want: device.Reading{
        Temperature: utils.Ptr(-50.0),
        SpecificGravity: utils.Ptr(2.0),
        Battery: utils.Ptr(0),
      },
    },
    {
      name: "implausible battery only drops the battery",
      in: device.Reading{
        Temperature: utils.Ptr(21.0),
        SpecificGravity: utils.Ptr(1.010),
        Battery: utils.Ptr(255),
        AccelX: utils.Ptr(0.5),
      },
      want: device.Reading{
        Temperature: utils.Ptr(21.0),
        SpecificGravity: utils.Ptr(1.010),
        AccelX: utils.Ptr(0.5),
      },
    },
    {
      name: "everything out of range",
      in: device.Reading{
        Temperature: utils.Ptr(100.01),
        SpecificGravity: utils.Ptr(0.49),
        Battery: utils.Ptr(-1),
      },
      want: device.Reading{},
    },
    {
      name: "NaN gravity",
      in: device.Reading{
        SpecificGravity: utils.Ptr(math.NaN()),
      },
      want: device.Reading{},
    },
  }

  for _, c := range cases {
    t.Run(c.name, func(t *testing.T) {
      got := rapt.Validate(c.in)

      if !reflect.DeepEqual(got, c.want) {
        t.Fatalf("Validate(%v): got %v, wanted %v", c.in, got, c.want)
      }

      if again := rapt.Validate(got); !reflect.DeepEqual(again, got) {
        t.Fatalf("Validate is not idempotent: %v became %v", got, again)
      }
    })
  }
}
