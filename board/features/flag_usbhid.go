//go:build pios_usb_hid || !tinygo

package features

const usbHIDBit = USBHID
